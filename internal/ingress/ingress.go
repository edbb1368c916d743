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

// Package ingress is the HTTP edge of the document intake pipeline: it
// authenticates the caller, enforces case ownership, and turns each
// request into the ordered, individually-fallible steps the upload and
// delete contracts require. It never does the actual extraction,
// analysis, or indexing itself -- that is the Coordinator's job, kicked
// off fire-and-forget so a large upload never blocks on processing.
package ingress

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/caseflow/internal/authn"
	"github.com/kadirpekel/caseflow/internal/blobstore"
	"github.com/kadirpekel/caseflow/internal/cachefs"
	"github.com/kadirpekel/caseflow/internal/catalog"
	"github.com/kadirpekel/caseflow/internal/metrics"
	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressws"
)

// RetrievalUnregisterer is the best-effort external retrieval-store
// unregister the delete endpoint calls. NOT_FOUND-shaped failures are
// swallowed by the implementation; any other error is logged and does
// not block the Catalog delete.
type RetrievalUnregisterer interface {
	Unregister(storeID, fileURI string) error
}

// DocumentSubmitter is the subset of coordinator.Coordinator the upload
// handler needs: fire off the per-document pipeline without blocking
// the request.
type DocumentSubmitter interface {
	Submit(ctx context.Context, doc *model.Document)
}

// SummaryTrigger is the subset of summary.Engine the summary endpoints
// need, one method per trigger operation in spec §4.3.
type SummaryTrigger interface {
	Generate(ctx context.Context, caseID string) error
	Update(ctx context.Context, caseID string) error
	Regenerate(ctx context.Context, caseID string) error
}

// Server holds every dependency the Ingress API's handlers need. It is
// deliberately a flat struct of already-constructed collaborators,
// wired together once in cmd/caseflow-server.
type Server struct {
	Cases       *catalog.CaseRepo
	Documents   *catalog.DocumentRepo
	Blobs       blobstore.Store
	Coordinator DocumentSubmitter
	Summaries   SummaryTrigger
	Retrieval   RetrievalUnregisterer
	Progress    *progressws.Handler
	Auth        *authn.Validator

	WorkspaceRoot  string
	PresignExpiry  time.Duration
	MaxUploadBytes int64
}

func (s *Server) workspace(caseID string) *cachefs.Workspace {
	return cachefs.NewWorkspace(s.WorkspaceRoot, caseID)
}

// Router assembles the full chi mux: auth middleware at the edge,
// ownership checks per-request inside each handler (ownership depends
// on the path's case id, which chi only makes available once routed).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(metrics.Middleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware(s.Auth))
		s.mountAPI(r)
	})

	return r
}

func (s *Server) mountAPI(r chi.Router) {
	r.Route("/api/cases/{caseID}", func(r chi.Router) {
		r.Post("/documents/upload", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/stats", s.handleStats)
		r.Get("/summary/status", s.handleSummaryStatus)
		r.Post("/summary/generate", s.handleSummaryGenerate)
		r.Post("/summary/update", s.handleSummaryUpdate)
		r.Post("/summary/regenerate", s.handleSummaryRegenerate)
	})

	r.Route("/api/documents/{documentID}", func(r chi.Router) {
		r.Get("/", s.handleGetDocument)
		r.Get("/preview-url", s.handlePreviewURL)
		r.Get("/download-url", s.handleDownloadURL)
		r.Get("/download", s.handleDownload)
		r.Delete("/", s.handleDelete)
	})

	r.Get("/ws/progress", s.Progress.ServeHTTP)
}

// requestLogger is the teacher's fmt.Printf-style access log, swapped
// for slog so it composes with the rest of this repo's structured
// logging instead of writing straight to stdout.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logRequest(r.Method, r.URL.Path, time.Since(start))
	})
}
