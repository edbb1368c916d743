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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadirpekel/caseflow/internal/caseflowerr"
)

// respondJSON writes data as a JSON response with the given status,
// the same helper shape every handler in this package uses to keep
// response writing uniform.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err to an HTTP status via its caseflowerr.Kind (or
// 500 if it isn't one) and writes a {"error": "..."} body. 4xx on input
// problems, 403 on ownership, 404 on missing, 409 on admission
// conflict, 5xx otherwise, per spec §6.1.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ce *caseflowerr.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case caseflowerr.KindInput:
			status = http.StatusBadRequest
		case caseflowerr.KindAuth:
			status = http.StatusUnauthorized
		case caseflowerr.KindOwnership:
			status = http.StatusForbidden
		case caseflowerr.KindNotFound:
			status = http.StatusNotFound
		case caseflowerr.KindConflict:
			status = http.StatusConflict
		case caseflowerr.KindUpstream, caseflowerr.KindIO, caseflowerr.KindInternal:
			status = http.StatusInternalServerError
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("ingress: request failed", "error", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func logRequest(method, path string, elapsed time.Duration) {
	slog.Info("ingress: request", "method", method, "path", path, "elapsed", elapsed)
}
