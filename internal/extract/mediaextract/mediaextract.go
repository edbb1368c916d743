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

// Package mediaextract handles image and audio uploads. Transcription
// and OCR are out of scope; this produces a placeholder transcript
// that records what the file is so the pipeline still has something
// to classify and index, rather than failing the upload outright.
package mediaextract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/caseflow/internal/extract"
	"github.com/kadirpekel/caseflow/internal/model"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) CanExtract(ft model.FileType) bool {
	switch ft {
	case model.FileTypeJPG, model.FileTypePNG, model.FileTypeMP3, model.FileTypeWAV, model.FileTypeM4A:
		return true
	default:
		return false
	}
}

func (e *Extractor) Extract(ctx context.Context, path string, ft model.FileType) (*extract.Result, error) {
	placeholder := fmt.Sprintf("[%s file: %s -- no transcript or OCR available]", ft, filepath.Base(path))
	return &extract.Result{
		Text:      placeholder,
		PageCount: 1,
		WordCount: len(strings.Fields(placeholder)),
	}, nil
}
