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

// Package textextract handles plain-text and markdown uploads: the
// file content already is the extracted text.
package textextract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/model"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) CanExtract(ft model.FileType) bool {
	return ft == model.FileTypeTXT || ft == model.FileTypeMD
}

func (e *Extractor) Extract(ctx context.Context, path string, ft model.FileType) (*extract.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file %s: %w", path, err)
	}
	content := string(data)
	return &extract.Result{
		Text:      content,
		PageCount: 1,
		WordCount: len(strings.Fields(content)),
	}, nil
}
