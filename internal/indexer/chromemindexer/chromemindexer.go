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

// Package chromemindexer implements the Indexer interface over an
// embedded chromem-go database, for local development and integration
// tests where standing up Qdrant is unnecessary overhead.
package chromemindexer

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kadirpekel/caseflow/internal/indexer"
)

// vectorDimension is small and fixed: this indexer has no external
// embedding model wired in, so documents are projected into a
// deterministic hashed bag-of-words vector purely to exercise chromem's
// similarity search API in tests and single-node deploys, not to
// deliver production-grade semantic search.
const vectorDimension = 64

// Indexer wraps a chromem.DB, one collection per case.
type Indexer struct {
	mu          sync.Mutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// New creates an in-memory chromem-backed Indexer. If persistPath is
// non-empty it names the gob file the database is persisted to and
// loaded from.
func New(persistPath string) (*Indexer, error) {
	var db *chromem.DB
	if persistPath != "" {
		loaded, err := chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			db = chromem.NewDB()
		} else {
			db = loaded
		}
	} else {
		db = chromem.NewDB()
	}

	return &Indexer{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

func (i *Indexer) collectionFor(caseID string) (*chromem.Collection, error) {
	storeID := indexer.StoreID(caseID)

	i.mu.Lock()
	defer i.mu.Unlock()

	if col, ok := i.collections[storeID]; ok {
		return col, nil
	}

	col, err := i.db.GetOrCreateCollection(storeID, nil, hashEmbed)
	if err != nil {
		return nil, fmt.Errorf("get/create chromem collection %q: %w", storeID, err)
	}
	i.collections[storeID] = col
	return col, nil
}

func (i *Indexer) Index(ctx context.Context, in indexer.Input) (string, string, error) {
	col, err := i.collectionFor(in.CaseID)
	if err != nil {
		return "", "", err
	}

	doc := chromem.Document{
		ID:      in.DocumentID,
		Content: in.Text,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return "", "", fmt.Errorf("index document %s: %w", in.DocumentID, err)
	}

	storeID := indexer.StoreID(in.CaseID)
	fileURI := fmt.Sprintf("chromem://%s/%s", storeID, in.DocumentID)
	return storeID, fileURI, nil
}

func (i *Indexer) DeleteCase(ctx context.Context, caseID string) error {
	storeID := indexer.StoreID(caseID)

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.collections[storeID]; !ok {
		return nil
	}
	if err := i.db.DeleteCollection(storeID); err != nil {
		return fmt.Errorf("delete chromem collection %q: %w", storeID, err)
	}
	delete(i.collections, storeID)
	return nil
}

// hashEmbed turns text into a deterministic, fixed-length vector by
// hashing each whitespace-separated word into one of vectorDimension
// buckets and counting the hits per bucket. It requires no model or
// network call, which keeps chromemindexer usable offline.
func hashEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, vectorDimension)
	for _, word := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%vectorDimension]++
	}
	return vec, nil
}

func tokenize(text string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
