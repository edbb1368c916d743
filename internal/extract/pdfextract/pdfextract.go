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

// Package pdfextract extracts plain text from PDF files using
// ledongthuc/pdf, tagging each page with a "--- Page N ---" marker.
package pdfextract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/model"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) CanExtract(ft model.FileType) bool {
	return ft == model.FileTypePDF
}

func (e *Extractor) Extract(ctx context.Context, path string, ft model.FileType) (*extract.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat-ing PDF %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parsing PDF %s: %w", path, err)
	}

	totalPages := reader.NumPage()
	var parts []string
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	content := strings.Join(parts, "\n\n")
	return &extract.Result{
		Text:      content,
		PageCount: totalPages,
		WordCount: len(strings.Fields(content)),
	}, nil
}
