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

// Package analyze classifies an extracted document's text into a
// DocumentMetadata record via a single LLM call. A parse failure never
// fails the pipeline: it falls back to a minimal, low-confidence record
// so the document still reaches the indexing stage.
package analyze

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/caseflow/internal/llm"
	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/retry"
)

// fallbackConfidence is the classification_confidence recorded when the
// LLM response could not be parsed as JSON.
const fallbackConfidence = 0.0

// defaultConfidence is used when the LLM returns a parseable record but
// omits its own confidence score.
const defaultConfidence = 0.8

var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Analyzer classifies document text using a configured llm.Provider.
type Analyzer struct {
	provider  llm.Provider
	charLimit int
	timeout   time.Duration
}

func New(provider llm.Provider, charLimit int, timeout time.Duration) *Analyzer {
	return &Analyzer{provider: provider, charLimit: charLimit, timeout: timeout}
}

// llmRecord mirrors the JSON shape asked of the model; its fields map
// directly onto model.DocumentMetadata once parsed.
type llmRecord struct {
	DocumentType       string              `json:"document_type"`
	ClassificationConf *float64            `json:"classification_confidence"`
	ExecutiveSummary   string              `json:"executive_summary"`
	MainArguments      []string            `json:"main_arguments"`
	RequestedRelief    string              `json:"requested_relief"`
	Entities           model.Entities      `json:"entities"`
	RelevanceScores    map[string]float64  `json:"relevance_scores"`
	Relationships      model.Relationships `json:"relationships"`
}

// Analyze calls the configured LLM with the extracted text and returns a
// fully populated DocumentMetadata. extractionMethod and the page/word
// counts come from the Extractor stage, not the LLM.
func (a *Analyzer) Analyze(ctx context.Context, text string, pageCount, wordCount int, extractionMethod string) *model.DocumentMetadata {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	truncated := text
	if len(truncated) > a.charLimit {
		truncated = truncated[:a.charLimit]
	}

	var record *llmRecord
	err := retry.Do(ctx, retryDelays, func(attempt int) error {
		resp, _, err := a.provider.Complete(ctx, systemPrompt, buildUserPrompt(truncated))
		if err != nil {
			slog.Warn("analyzer: LLM call failed", "attempt", attempt, "error", err)
			return err
		}
		parsed, perr := parseRecord(resp)
		if perr != nil {
			slog.Warn("analyzer: could not parse LLM response as JSON", "error", perr)
			return perr
		}
		record = parsed
		return nil
	})
	if err != nil || record == nil {
		return fallbackMetadata(pageCount, wordCount, extractionMethod)
	}

	confidence := defaultConfidence
	if record.ClassificationConf != nil {
		confidence = *record.ClassificationConf
	}

	relevance := make(map[model.DocType]float64, len(record.RelevanceScores))
	for k, v := range record.RelevanceScores {
		relevance[model.DocType(k)] = v
	}

	return &model.DocumentMetadata{
		SchemaVersion:      model.MetadataSchemaVersion,
		DocumentType:       resolveDocType(record.DocumentType),
		ClassificationConf: confidence,
		ExtractionMethod:   extractionMethod,
		PageCount:          pageCount,
		WordCount:          wordCount,
		ExecutiveSummary:   record.ExecutiveSummary,
		MainArguments:      record.MainArguments,
		RequestedRelief:    record.RequestedRelief,
		Entities:           record.Entities,
		RelevanceScores:    relevance,
		Relationships:      record.Relationships,
	}
}

func fallbackMetadata(pageCount, wordCount int, extractionMethod string) *model.DocumentMetadata {
	return &model.DocumentMetadata{
		SchemaVersion:      model.MetadataSchemaVersion,
		DocumentType:       model.DocTypeUnknown,
		ClassificationConf: fallbackConfidence,
		ExtractionMethod:   extractionMethod,
		PageCount:          pageCount,
		WordCount:          wordCount,
		MainArguments:      []string{},
		Entities:           model.Entities{Parties: []model.Party{}, Dates: []model.DateMention{}, Authorities: []model.Authority{}},
		RelevanceScores:    map[model.DocType]float64{},
		Relationships:      model.Relationships{References: []string{}, Contradicts: []string{}, Supports: []string{}},
	}
}

// parseRecord tolerates a response wrapped in a Markdown code fence, a
// habit many providers fall into even when asked for raw JSON.
func parseRecord(resp string) (*llmRecord, error) {
	trimmed := strings.TrimSpace(resp)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var record llmRecord
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func resolveDocType(raw string) model.DocType {
	switch model.DocType(raw) {
	case model.DocTypeMotion, model.DocTypeResponse, model.DocTypeComplain, model.DocTypeOrder,
		model.DocTypeNotice, model.DocTypeEvidence, model.DocTypeResearch:
		return model.DocType(raw)
	default:
		return model.DocTypeUnknown
	}
}

const systemPrompt = `You are a legal document classifier. Given the text of an uploaded case document, respond with ONLY a JSON object (no prose, no code fence) with this shape:
{
  "document_type": "Motion|Response|Complaint|Order|Notice|Evidence|Research|Unknown",
  "classification_confidence": 0.0-1.0,
  "executive_summary": "string",
  "main_arguments": ["string"],
  "requested_relief": "string",
  "entities": {"parties": [{"name":"","role":"","mentions":0}], "dates": [{"date":"","context":""}], "authorities": [{"citation":"","context":""}]},
  "relevance_scores": {"Motion": 0.0},
  "relationships": {"references": [], "contradicts": [], "supports": []}
}`

func buildUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Classify the following document text:\n\n")
	b.WriteString(text)
	return b.String()
}
