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

// Package indexer writes extracted document text into the retrieval
// store, one collection per case, so the case's documents become
// searchable for downstream retrieval-augmented queries.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Input is everything the Indexer needs to place one document into its
// case's retrieval store.
type Input struct {
	CaseID     string
	DocumentID string
	Filename   string
	Text       string
}

// Indexer writes a document's text into the retrieval store for its
// case and returns the store id used and a locator for the indexed
// content.
type Indexer interface {
	Index(ctx context.Context, in Input) (storeID string, fileURI string, err error)
	DeleteCase(ctx context.Context, caseID string) error
}

// StoreID derives the deterministic, one-per-case retrieval store
// identifier from a case id.
func StoreID(caseID string) string {
	sum := sha256.Sum256([]byte(caseID))
	return hex.EncodeToString(sum[:])[:16]
}
