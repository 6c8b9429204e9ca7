package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/freightguard/internal/metrics"
	custommiddleware "github.com/mmeshcher/freightguard/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware API.
func (h *Handler) SetupRouter(requests metrics.RequestSink, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics(requests))

	r.Get("/health", h.Health)
	r.Post("/commands/operations", h.CreateOperation)

	r.Route("/projections", func(r chi.Router) {
		r.Get("/operations", h.ListOperations)
		r.Get("/budget/today", h.GetTodayBudget)
	})

	r.Get("/audit/recompute", h.Audit)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
