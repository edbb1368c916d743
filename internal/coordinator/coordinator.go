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

// Package coordinator runs one actor goroutine per document through the
// pending -> extracting -> analyzing -> indexing -> complete state
// machine (or -> failed from any state), bounded by a worker pool so a
// burst of uploads cannot exhaust memory or overwhelm the configured
// LLM and retrieval-store backends. Every Catalog write happens before
// the matching Progress Bus event is published -- a subscriber never
// sees "complete" before the document is actually queryable.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/caseflow/internal/analyze"
	"github.com/kadirpekel/caseflow/internal/cachefs"
	"github.com/kadirpekel/caseflow/internal/catalog"
	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/indexer"
	"github.com/kadirpekel/caseflow/internal/metrics"
	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
	"github.com/kadirpekel/caseflow/internal/staleness"
)

// BlobGetter is the subset of blobstore.Store the Coordinator needs to
// fetch a document's raw bytes back for extraction.
type BlobGetter interface {
	Get(ctx context.Context, ref model.BlobRef) (io.ReadCloser, error)
}

// Coordinator wires the Catalog, Blob Store, Extractor registry,
// Analyzer, Indexer, Progress Bus, and Staleness Propagator into the
// per-document pipeline.
type Coordinator struct {
	documents  *catalog.DocumentRepo
	blobs      BlobGetter
	extractors *extract.Registry
	analyzer   *analyze.Analyzer
	index      indexer.Indexer
	bus        *progressbus.Bus
	stale      *staleness.Propagator
	workspaces func(caseID string) *cachefs.Workspace

	sem chan struct{}
}

// New builds a Coordinator whose worker pool admits at most
// maxConcurrent documents at a time. workspaceRoot is the Cache FS root
// the per-case Workspace is derived from.
func New(
	documents *catalog.DocumentRepo,
	blobs BlobGetter,
	extractors *extract.Registry,
	analyzer *analyze.Analyzer,
	index indexer.Indexer,
	bus *progressbus.Bus,
	stale *staleness.Propagator,
	workspaceRoot string,
	maxConcurrent int,
) *Coordinator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Coordinator{
		documents:  documents,
		blobs:      blobs,
		extractors: extractors,
		analyzer:   analyzer,
		index:      index,
		bus:        bus,
		stale:      stale,
		workspaces: func(caseID string) *cachefs.Workspace { return cachefs.NewWorkspace(workspaceRoot, caseID) },
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Submit launches the actor for doc, blocking until a worker slot is
// free. Callers that must not block the HTTP request should call this
// from their own goroutine (the Ingress handler does).
func (c *Coordinator) Submit(ctx context.Context, doc *model.Document) {
	c.sem <- struct{}{}
	go func() {
		defer func() { <-c.sem }()
		c.run(ctx, doc)
	}()
}

// SubmitAll processes a batch of documents concurrently, honoring the
// same worker pool Submit does, and waits for all of them to finish.
func (c *Coordinator) SubmitAll(ctx context.Context, docs []*model.Document) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		doc := doc
		c.sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-c.sem }()
			c.run(ctx, doc)
			return nil
		})
	}
	return g.Wait()
}

func (c *Coordinator) run(ctx context.Context, doc *model.Document) {
	log := slog.With("case_id", doc.CaseID, "document_id", doc.ID, "filename", doc.Filename)

	if err := c.transition(ctx, doc, model.StatusPending, model.StatusExtracting, model.EventDocumentExtracting); err != nil {
		log.Warn("coordinator: could not begin extraction", "error", err)
		return
	}

	text, pageCount, wordCount, extractionMethod, err := c.extractText(ctx, doc)
	if err != nil {
		c.fail(ctx, doc, err)
		return
	}

	ws := c.workspaces(doc.CaseID)
	if err := ws.EnsureDocumentDir(doc.FolderName); err != nil {
		c.fail(ctx, doc, fmt.Errorf("prepare cache dir: %w", err))
		return
	}
	if err := cachefs.WriteAtomic(ws.ExtractedTextPath(doc.FolderName), []byte(text), 0o644); err != nil {
		c.fail(ctx, doc, fmt.Errorf("cache extracted text: %w", err))
		return
	}

	if err := c.documents.SaveExtraction(ctx, doc.ID, pageCount, wordCount); err != nil {
		c.fail(ctx, doc, fmt.Errorf("save extraction: %w", err))
		return
	}
	c.publish(doc, model.EventDocumentAnalyzing, "")

	metadata := c.analyzer.Analyze(ctx, text, pageCount, wordCount, extractionMethod)

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		c.fail(ctx, doc, fmt.Errorf("marshal metadata: %w", err))
		return
	}
	if err := cachefs.WriteAtomic(ws.MetadataPath(doc.FolderName), metadataJSON, 0o644); err != nil {
		c.fail(ctx, doc, fmt.Errorf("cache metadata: %w", err))
		return
	}
	if err := c.documents.SaveMetadata(ctx, doc.ID, metadata.DocumentType, metadata); err != nil {
		c.fail(ctx, doc, fmt.Errorf("save metadata: %w", err))
		return
	}
	c.publish(doc, model.EventDocumentIndexing, "")

	storeID, fileURI, err := c.index.Index(ctx, indexer.Input{
		CaseID:     doc.CaseID,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Text:       text,
	})
	if err != nil {
		c.fail(ctx, doc, fmt.Errorf("index document: %w", err))
		return
	}

	if err := c.documents.SaveIndexResult(ctx, doc.ID, storeID, fileURI); err != nil {
		c.fail(ctx, doc, fmt.Errorf("save index result: %w", err))
		return
	}
	c.publish(doc, model.EventDocumentComplete, "")
	metrics.DocumentsProcessed.WithLabelValues("complete").Inc()

	if err := c.stale.DocumentIndexed(ctx, doc.CaseID); err != nil {
		log.Warn("coordinator: could not mark summary stale", "error", err)
	}
}

func (c *Coordinator) transition(ctx context.Context, doc *model.Document, from, to model.ProcessingStatus, kind model.EventKind) error {
	ok, err := c.documents.TransitionStatus(ctx, doc.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document %s was not in status %q", doc.ID, from)
	}
	c.publish(doc, kind, "")
	return nil
}

func (c *Coordinator) fail(ctx context.Context, doc *model.Document, cause error) {
	slog.Warn("coordinator: document processing failed", "case_id", doc.CaseID, "document_id", doc.ID, "error", cause)
	if err := c.documents.MarkFailed(ctx, doc.ID, cause); err != nil {
		slog.Error("coordinator: could not record failure", "document_id", doc.ID, "error", err)
	}
	c.publish(doc, model.EventDocumentError, cause.Error())
	metrics.DocumentsProcessed.WithLabelValues("failed").Inc()
}

func (c *Coordinator) publish(doc *model.Document, kind model.EventKind, errMsg string) {
	status := statusForEvent(kind)
	c.bus.Publish(model.ProgressEvent{
		Kind:       kind,
		CaseID:     doc.CaseID,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Percent:    model.PercentForStatus(status),
		Error:      errMsg,
		Timestamp:  time.Now(),
	})
}

func statusForEvent(kind model.EventKind) model.ProcessingStatus {
	switch kind {
	case model.EventDocumentExtracting:
		return model.StatusExtracting
	case model.EventDocumentAnalyzing:
		return model.StatusAnalyzing
	case model.EventDocumentIndexing:
		return model.StatusIndexing
	case model.EventDocumentComplete:
		return model.StatusComplete
	default:
		return model.StatusFailed
	}
}

// extractionMethodFor names the Extractor package that handled ft, for
// the extraction_method field recorded in DocumentMetadata.
func extractionMethodFor(ft model.FileType) string {
	switch ft {
	case model.FileTypePDF:
		return "pdfextract"
	case model.FileTypeDOCX:
		return "docxextract"
	case model.FileTypeTXT, model.FileTypeMD:
		return "textextract"
	default:
		return "mediaextract"
	}
}

func (c *Coordinator) extractText(ctx context.Context, doc *model.Document) (text string, pageCount, wordCount int, method string, err error) {
	rc, err := c.blobs.Get(ctx, doc.Blob)
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("fetch blob: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "caseflow-intake-*")
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("stage temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, rc); err != nil {
		return "", 0, 0, "", fmt.Errorf("stage blob content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, 0, "", fmt.Errorf("close staged file: %w", err)
	}

	res, err := c.extractors.Extract(ctx, tmp.Name(), doc.FileType)
	if err != nil {
		return "", 0, 0, "", err
	}

	return res.Text, res.PageCount, res.WordCount, extractionMethodFor(doc.FileType), nil
}
