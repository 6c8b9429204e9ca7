package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type served struct {
	route  string
	method string
	status int
}

type stubSink struct {
	mu   sync.Mutex
	seen []served
}

func (s *stubSink) RequestServed(route, method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, served{route: route, method: method, status: status})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	sink := &stubSink{}

	r := chi.NewRouter()
	r.Use(Metrics(sink))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/42", "/plain", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, sink.seen, 3)
	assert.Equal(t, served{route: "/items/{id}", method: http.MethodGet, status: http.StatusAccepted}, sink.seen[0])
	assert.Equal(t, served{route: "/plain", method: http.MethodGet, status: http.StatusOK}, sink.seen[1])
	assert.Equal(t, http.StatusNotFound, sink.seen[2].status)
}

func TestLogger_WritesAccessEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/commands/operations", nil))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, http.MethodPost, fields["method"])
	assert.Equal(t, "/commands/operations", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 5, fields["bytes"])
}
