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

// Package docxextract extracts plain text from Word documents using
// nguyenthenguyen/docx. DOCX has no native page boundaries, so the
// extracted text carries no page markers; page_count is approximated
// from the word count (wordsPerApproximatePage words per page, minimum 1).
package docxextract

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/model"
)

// wordsPerApproximatePage estimates a page boundary for reporting
// purposes only; it does not affect the extracted text.
const wordsPerApproximatePage = 500

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) CanExtract(ft model.FileType) bool {
	return ft == model.FileTypeDOCX
}

func (e *Extractor) Extract(ctx context.Context, path string, ft model.FileType) (*extract.Result, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX %s: %w", path, err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	wordCount := len(strings.Fields(content))
	pageCount := wordCount / wordsPerApproximatePage
	if pageCount < 1 {
		pageCount = 1
	}

	return &extract.Result{
		Text:      content,
		PageCount: pageCount,
		WordCount: wordCount,
	}, nil
}
