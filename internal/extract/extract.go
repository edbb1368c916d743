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

// Package extract turns an uploaded file's raw bytes into plain text,
// one implementation per file type. Paginated formats (PDF) mark page
// boundaries with "--- Page N ---" so downstream consumers can still
// locate a fact by page without re-parsing the original file.
package extract

import (
	"context"
	"fmt"

	"github.com/kadirpekel/caseflow/internal/model"
)

// Result is a file's extracted plain text and the counts derived from it.
type Result struct {
	Text      string
	PageCount int
	WordCount int
}

// Extractor produces a Result from a file on disk. CanExtract reports
// whether this implementation handles the given file type.
type Extractor interface {
	CanExtract(ft model.FileType) bool
	Extract(ctx context.Context, path string, ft model.FileType) (*Result, error)
}

// Registry dispatches to the first registered Extractor that claims a
// file type.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a Registry over exactly the extractors given,
// consulted in the order passed. It registers no defaults of its own.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Extract finds an Extractor for ft and runs it. A page count of zero
// is floored to 1: every document occupies at least one page of
// content, even an empty text file (invariant carried from the
// catalog schema, which never stores page_count = 0 for a processed
// document).
func (r *Registry) Extract(ctx context.Context, path string, ft model.FileType) (*Result, error) {
	for _, e := range r.extractors {
		if e.CanExtract(ft) {
			res, err := e.Extract(ctx, path, ft)
			if err != nil {
				return nil, err
			}
			if res.PageCount < 1 {
				res.PageCount = 1
			}
			return res, nil
		}
	}
	return nil, fmt.Errorf("no extractor registered for file type %q", ft)
}
