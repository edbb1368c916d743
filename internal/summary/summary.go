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

// Package summary builds and maintains a case's case_summary.md from its
// indexed documents' metadata. Generation is admitted by a Catalog-level
// compare-and-set (CaseRepo.BeginSummaryGeneration), not an in-process
// lock, so it stays correct even if the Ingress API is scaled across
// multiple processes. Documents are folded into the narrative in small
// batches with a pause between each, the same "accumulate, don't
// overwhelm the LLM" shape as a hierarchical map-reduce summarizer.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/kadirpekel/caseflow/internal/cachefs"
	"github.com/kadirpekel/caseflow/internal/caseflowerr"
	"github.com/kadirpekel/caseflow/internal/llm"
	"github.com/kadirpekel/caseflow/internal/metrics"
	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
)

// CaseDocuments is the subset of catalog.DocumentRepo the Engine needs.
type CaseDocuments interface {
	ListByCase(ctx context.Context, caseID string) ([]*model.Document, error)
	GetMetadata(ctx context.Context, documentID string) (*model.DocumentMetadata, error)
}

// Cases is the subset of catalog.CaseRepo the Engine needs.
type Cases interface {
	Get(ctx context.Context, caseID string) (*model.Case, error)
	BeginSummaryGeneration(ctx context.Context, caseID string) (bool, error)
	FinishSummaryGeneration(ctx context.Context, caseID string, documentCount int) error
	FailSummaryGeneration(ctx context.Context, caseID string) error
}

const systemPrompt = `You are a legal case summarizer. Given batches of document summaries for one case, produce a running narrative that integrates the new batch into what came before. Respond with plain text, not JSON.`

// ErrAlreadyGenerating is returned when a generation is already running
// for the case; its Kind is caseflowerr.KindConflict so the Ingress API
// maps it to a 409 without any case-specific handling of its own.
var ErrAlreadyGenerating = caseflowerr.New(caseflowerr.KindConflict, "summary generation already in progress for this case")

// operation distinguishes the three trigger operations spec.md §4.3
// names: they share the batching/admission machinery and differ only in
// which documents feed the run and whether a prior summary must exist.
type operation int

const (
	opGenerate operation = iota
	opUpdate
	opRegenerate
)

func (op operation) String() string {
	switch op {
	case opUpdate:
		return "update"
	case opRegenerate:
		return "regenerate"
	default:
		return "generate"
	}
}

// Engine generates and maintains a case's case_summary.md.
type Engine struct {
	cases      Cases
	documents  CaseDocuments
	provider   llm.Provider
	bus        *progressbus.Bus
	batchSize  int
	batchDelay time.Duration
	timeout    time.Duration
	workspaces func(caseID string) *cachefs.Workspace
}

func New(cases Cases, documents CaseDocuments, provider llm.Provider, bus *progressbus.Bus, batchSize int, batchDelay, timeout time.Duration, workspaceRoot string) *Engine {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Engine{
		cases:      cases,
		documents:  documents,
		provider:   provider,
		bus:        bus,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		timeout:    timeout,
		workspaces: func(caseID string) *cachefs.Workspace { return cachefs.NewWorkspace(workspaceRoot, caseID) },
	}
}

// Generate builds the case summary from every currently-complete
// document, ignoring whatever summary already exists.
func (e *Engine) Generate(ctx context.Context, caseID string) error {
	return e.run(ctx, caseID, opGenerate)
}

// Update merges only documents uploaded after the case's last
// summary_generated_at into the existing summary. Requires a summary to
// already exist on disk.
func (e *Engine) Update(ctx context.Context, caseID string) error {
	return e.run(ctx, caseID, opUpdate)
}

// Regenerate behaves like Generate but is named separately per spec.md
// §4.3; cachefs.WriteAtomicWithBackup backs up whatever summary exists
// before either operation overwrites it, so the two only differ in
// intent, not in backup mechanics.
func (e *Engine) Regenerate(ctx context.Context, caseID string) error {
	return e.run(ctx, caseID, opRegenerate)
}

// run performs the admission check synchronously so a caller can observe
// ErrAlreadyGenerating (409) on the request that lost the race, then
// backgrounds the actual build/summarize work so the HTTP response
// doesn't block on an LLM call. Only the admission check is awaited.
func (e *Engine) run(ctx context.Context, caseID string, op operation) error {
	admitted, err := e.cases.BeginSummaryGeneration(ctx, caseID)
	if err != nil {
		return fmt.Errorf("admission check for case %s: %w", caseID, err)
	}
	if !admitted {
		return ErrAlreadyGenerating
	}
	e.publish(caseID, model.EventSummaryGenerating, 0, "", "")

	go e.runAdmitted(context.Background(), caseID, op)
	return nil
}

// runAdmitted performs the build/summarize work for a run already
// admitted by BeginSummaryGeneration. It always runs detached from the
// originating request's context so a client disconnect doesn't cancel
// an in-flight summarization.
func (e *Engine) runAdmitted(ctx context.Context, caseID string, op operation) {
	narrative, documentCount, err := e.build(ctx, caseID, op)
	if err != nil {
		_ = e.cases.FailSummaryGeneration(ctx, caseID)
		e.publish(caseID, model.EventSummaryFailed, 0, "", err.Error())
		metrics.SummaryOperations.WithLabelValues(op.String(), "failed").Inc()
		slog.Warn("summary: generation failed", "case_id", caseID, "error", err)
		return
	}

	if err := e.cases.FinishSummaryGeneration(ctx, caseID, documentCount); err != nil {
		e.publish(caseID, model.EventSummaryFailed, 0, "", err.Error())
		metrics.SummaryOperations.WithLabelValues(op.String(), "failed").Inc()
		slog.Warn("summary: finishing generation failed", "case_id", caseID, "error", err)
		return
	}
	metrics.SummaryOperations.WithLabelValues(op.String(), "complete").Inc()
	e.publish(caseID, model.EventSummaryComplete, 100, fmt.Sprintf("summarized %d documents", documentCount), "")
	_ = narrative
}

func (e *Engine) build(ctx context.Context, caseID string, op operation) (string, int, error) {
	ws := e.workspaces(caseID)
	if err := ws.EnsureLayout(); err != nil {
		return "", 0, fmt.Errorf("preparing case workspace: %w", err)
	}

	seed := ""
	if op == opUpdate {
		existing, err := os.ReadFile(ws.CaseSummaryPath())
		if err != nil {
			return "", 0, caseflowerr.Wrap(caseflowerr.KindInput, "update requires an existing case summary", err)
		}
		seed = string(existing)
	}

	docs, err := e.selectDocuments(ctx, caseID, op)
	if err != nil {
		return "", 0, err
	}
	if len(docs) == 0 {
		return "", 0, caseflowerr.New(caseflowerr.KindInput, "no complete documents to summarize")
	}

	narrative, documentCount, err := e.summarize(ctx, caseID, seed, docs)
	if err != nil {
		return "", 0, err
	}

	if err := cachefs.WriteAtomicWithBackup(ws.CaseSummaryPath(), []byte(narrative), 0o644); err != nil {
		return "", 0, fmt.Errorf("writing case summary: %w", err)
	}

	return narrative, documentCount, nil
}

func (e *Engine) selectDocuments(ctx context.Context, caseID string, op operation) ([]*model.Document, error) {
	docs, err := e.documents.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing documents for case %s: %w", caseID, err)
	}

	var since *time.Time
	if op == opUpdate {
		cs, err := e.cases.Get(ctx, caseID)
		if err != nil {
			return nil, fmt.Errorf("loading case %s: %w", caseID, err)
		}
		since = cs.SummaryGeneratedAt
	}

	var out []*model.Document
	for _, doc := range docs {
		if doc.Status != model.StatusComplete {
			continue
		}
		if since != nil && !doc.UploadedAt.After(*since) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// summarize folds docs into a narrative in batches of e.batchSize,
// sleeping e.batchDelay between batches so a large case does not fire
// its LLM calls back-to-back. Documents whose metadata cannot be read
// are skipped with a warning rather than failing the whole run.
func (e *Engine) summarize(ctx context.Context, caseID, seed string, docs []*model.Document) (string, int, error) {
	narrative := seed
	documentCount := 0
	totalBatches := int(math.Ceil(float64(len(docs)) / float64(e.batchSize)))

	for start := 0; start < len(docs); start += e.batchSize {
		end := start + e.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		batchIndex := start/e.batchSize + 1

		batchText, n := e.describeBatch(ctx, batch)
		documentCount += n
		if batchText != "" {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			next, _, err := e.provider.Complete(callCtx, systemPrompt, buildPrompt(narrative, batchText))
			cancel()
			if err != nil {
				return "", 0, fmt.Errorf("summarizing batch %d/%d: %w", batchIndex, totalBatches, err)
			}
			narrative = strings.TrimSpace(next)
		}

		percent := int(math.Round(float64(batchIndex) / float64(totalBatches) * 100))
		e.publish(caseID, model.EventSummaryGenerating, percent, fmt.Sprintf("batch %d/%d", batchIndex, totalBatches), "")

		if end < len(docs) {
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	return narrative, documentCount, nil
}

func (e *Engine) describeBatch(ctx context.Context, batch []*model.Document) (string, int) {
	var b strings.Builder
	n := 0
	for _, doc := range batch {
		if !doc.HasMetadata {
			continue
		}
		md, err := e.documents.GetMetadata(ctx, doc.ID)
		if err != nil {
			slog.Warn("summary: skipping unreadable metadata", "document_id", doc.ID, "error", err)
			continue
		}
		fmt.Fprintf(&b, "Document %q (%s): %s\n", doc.Filename, md.DocumentType, md.ExecutiveSummary)
		n++
	}
	return b.String(), n
}

func (e *Engine) publish(caseID string, kind model.EventKind, percent int, message, errMsg string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(model.ProgressEvent{
		Kind:      kind,
		CaseID:    caseID,
		Percent:   percent,
		Message:   message,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

func buildPrompt(existingNarrative, batchText string) string {
	var b strings.Builder
	if existingNarrative != "" {
		b.WriteString("Existing narrative so far:\n")
		b.WriteString(existingNarrative)
		b.WriteString("\n\n")
	}
	b.WriteString("New documents to integrate:\n")
	b.WriteString(batchText)
	return b.String()
}
