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

// Package staleness marks a case's generated summary stale whenever a
// new document finishes indexing. It is a single function, not a
// running process: the Coordinator calls it synchronously at the
// indexing -> complete transition, and the mark itself is a
// compare-and-set against the Catalog so it is safe to call from any
// number of concurrent document actors.
package staleness

import "context"

// Marker is satisfied by catalog.CaseRepo.
type Marker interface {
	MarkSummaryStale(ctx context.Context, caseID string) error
}

// Propagator notifies the Catalog that a case's summary no longer
// reflects every indexed document.
type Propagator struct {
	cases Marker
}

func New(cases Marker) *Propagator {
	return &Propagator{cases: cases}
}

// DocumentIndexed must be called after a document's Catalog row
// transitions to complete, never before. A summary generation in
// progress is never marked stale out from under it: the compare-and-set
// in catalog.CaseRepo.MarkSummaryStale only demotes a "generated" summary.
func (p *Propagator) DocumentIndexed(ctx context.Context, caseID string) error {
	return p.cases.MarkSummaryStale(ctx, caseID)
}
