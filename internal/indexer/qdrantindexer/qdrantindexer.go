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

// Package qdrantindexer implements the Indexer interface against a
// Qdrant server, for production deployments where the retrieval store
// must survive the intake process restarting.
package qdrantindexer

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kadirpekel/caseflow/internal/indexer"
)

const vectorDimension = 64

// Indexer wraps a qdrant.Client, one collection per case.
type Indexer struct {
	client *qdrant.Client
}

func New(host string, port int, apiKey string, useTLS bool) (*Indexer, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", host, port, err)
	}
	return &Indexer{client: client}, nil
}

func (idx *Indexer) ensureCollection(ctx context.Context, storeID string) error {
	exists, err := idx.client.CollectionExists(ctx, storeID)
	if err != nil {
		return fmt.Errorf("check qdrant collection %q: %w", storeID, err)
	}
	if exists {
		return nil
	}
	if err := idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: storeID,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create qdrant collection %q: %w", storeID, err)
	}
	return nil
}

func (idx *Indexer) Index(ctx context.Context, in indexer.Input) (string, string, error) {
	storeID := indexer.StoreID(in.CaseID)
	if err := idx.ensureCollection(ctx, storeID); err != nil {
		return "", "", err
	}

	pointID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(in.DocumentID)).String()

	payload := make(map[string]*qdrant.Value, 3)
	for key, value := range map[string]any{
		"document_id": in.DocumentID,
		"filename":    in.Filename,
		"content":     in.Text,
	} {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return "", "", fmt.Errorf("convert payload value for key %s: %w", key, err)
		}
		payload[key] = val
	}

	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: storeID,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(pointID),
				Vectors: qdrant.NewVectors(hashVector(in.Text)...),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("upsert qdrant point for document %s: %w", in.DocumentID, err)
	}

	fileURI := fmt.Sprintf("qdrant://%s/%s", storeID, pointID)
	return storeID, fileURI, nil
}

func (idx *Indexer) DeleteCase(ctx context.Context, caseID string) error {
	storeID := indexer.StoreID(caseID)
	exists, err := idx.client.CollectionExists(ctx, storeID)
	if err != nil {
		return fmt.Errorf("check qdrant collection %q: %w", storeID, err)
	}
	if !exists {
		return nil
	}
	if err := idx.client.DeleteCollection(ctx, storeID); err != nil {
		return fmt.Errorf("delete qdrant collection %q: %w", storeID, err)
	}
	return nil
}

// hashVector projects text into the same fixed-dimension deterministic
// space as chromemindexer, so either backend can be swapped in without
// changing what gets written.
func hashVector(text string) []float32 {
	vec := make([]float32, vectorDimension)
	var word []rune
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(word)))
		vec[int(h.Sum32())%vectorDimension]++
		word = word[:0]
	}
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
	return vec
}
