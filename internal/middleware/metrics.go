package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/freightguard/internal/metrics"
)

// Metrics учитывает каждый запрос в счётчике по шаблону маршрута, методу и статусу.
// Запросы к неизвестным маршрутам учитываются с маршрутом "unmatched".
func Metrics(sink metrics.RequestSink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			sink.RequestServed(route, r.Method, statusOf(ww))
		})
	}
}
