package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRoutePatternNotRawPath(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/documents/{documentID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutilCount(t, "GET", "/api/documents/{documentID}", "4xx")

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	after := testutilCount(t, "GET", "/api/documents/{documentID}", "4xx")
	assert.Equal(t, before+1, after)
}

func testutilCount(t *testing.T, method, route, statusClass string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := httpRequests.WithLabelValues(method, route, statusClass).Write(metric); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}
