// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the intake pipeline's Prometheus metrics: HTTP
// request counts/latency by route, and document-pipeline throughput by
// stage outcome. /metrics is scraped like any other Prometheus target.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_http_requests_total",
		Help: "HTTP requests handled by the Ingress API, by route and status class.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caseflow_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// DocumentsProcessed counts documents leaving the Coordinator
	// pipeline by terminal status ("complete" or "failed").
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_documents_processed_total",
		Help: "Documents that finished the intake pipeline, by terminal status.",
	}, []string{"status"})

	// SummaryOperations counts Summary Engine runs by operation and outcome.
	SummaryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_summary_operations_total",
		Help: "Summary Engine operations, by operation (generate/update/regenerate) and outcome.",
	}, []string{"operation", "outcome"})
)

// Handler serves the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per chi route pattern,
// the same RouteContext lookup the teacher's HTTP transport uses so a
// metric series stays one-per-endpoint instead of one-per-distinct-id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		statusClass := statusClassOf(rec.status)
		httpRequests.WithLabelValues(r.Method, route, statusClass).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func statusClassOf(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
