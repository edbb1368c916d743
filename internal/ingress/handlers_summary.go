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

package ingress

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSummaryStatus(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	cs, ok := s.loadOwnedCase(w, r, caseID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        cs.SummaryStatus,
		"version":       cs.SummaryVersion,
		"generatedAt":   cs.SummaryGeneratedAt,
		"documentCount": cs.SummaryDocumentCount,
	})
}

func (s *Server) handleSummaryGenerate(w http.ResponseWriter, r *http.Request) {
	s.triggerSummary(w, r, s.Summaries.Generate)
}

func (s *Server) handleSummaryUpdate(w http.ResponseWriter, r *http.Request) {
	s.triggerSummary(w, r, s.Summaries.Update)
}

func (s *Server) handleSummaryRegenerate(w http.ResponseWriter, r *http.Request) {
	s.triggerSummary(w, r, s.Summaries.Regenerate)
}

// triggerSummary admits op synchronously — op itself backgrounds the
// actual build/summarize work once admitted (summary.Engine.run) — so a
// request that loses the admission race observes its 409 on this
// response, per spec §6.1 and §4.3's "reject a concurrent trigger with
// 409" rule.
func (s *Server) triggerSummary(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caseID string) error) {
	caseID := chi.URLParam(r, "caseID")
	if _, ok := s.loadOwnedCase(w, r, caseID); !ok {
		return
	}

	if err := op(r.Context(), caseID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
