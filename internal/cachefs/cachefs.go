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

// Package cachefs is the local filesystem mirror of a case's working
// state: extracted text, per-document metadata, and the generated
// case summary. It is a cache, not the system of record -- the Catalog
// and Blob Store hold the durable truth, and a missing cache entry is
// always recoverable by re-running extraction or summarization.
package cachefs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Workspace is the on-disk layout rooted at <root>/cases/<case_id>.
type Workspace struct {
	root   string
	caseID string
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// maxSlugLength is the folder_name invariant's "max 100 chars" bound.
const maxSlugLength = 100

// SlugifyFolderName derives the document's folder_name from its
// filename: lowercased, extension stripped, every run of characters
// other than letters, digits, '-' and '_' folded to one underscore,
// leading/trailing underscores trimmed, capped at maxSlugLength, and
// "document" when nothing is left.
func SlugifyFolderName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	slug := slugPattern.ReplaceAllString(strings.ToLower(base), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "_")
	}
	if slug == "" {
		slug = "document"
	}
	return slug
}

// NewWorkspace returns the workspace handle for caseID under root. It
// does not touch the filesystem; call EnsureLayout to create it.
func NewWorkspace(root, caseID string) *Workspace {
	return &Workspace{root: root, caseID: caseID}
}

// Root is the workspace's base directory.
func (w *Workspace) Root() string {
	return filepath.Join(w.root, "cases", w.caseID)
}

// DocumentDir is the per-document directory under documents/.
func (w *Workspace) DocumentDir(folderName string) string {
	return filepath.Join(w.Root(), "documents", folderName)
}

// IntakeDir is the staging area for in-flight uploads, scratch files a
// failed upload might leave behind.
func (w *Workspace) IntakeDir() string {
	return filepath.Join(w.Root(), "intake")
}

// CaseContextDir holds the generated case-level artifacts: the summary
// markdown file and its backup.
func (w *Workspace) CaseContextDir() string {
	return filepath.Join(w.Root(), "case-context")
}

// EnsureLayout creates every top-level directory the workspace needs.
func (w *Workspace) EnsureLayout() error {
	for _, dir := range []string{w.Root(), filepath.Join(w.Root(), "documents"), w.IntakeDir(), w.CaseContextDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureDocumentDir creates a document's directory on first write.
func (w *Workspace) EnsureDocumentDir(folderName string) error {
	dir := w.DocumentDir(folderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating document directory %s: %w", dir, err)
	}
	return nil
}

// RemoveAll deletes the entire workspace. Used when a case is deleted.
func (w *Workspace) RemoveAll() error {
	if err := os.RemoveAll(w.Root()); err != nil {
		return fmt.Errorf("removing workspace %s: %w", w.Root(), err)
	}
	return nil
}

// WriteAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a reader never observes a partially written
// file and a crash mid-write never corrupts the existing one.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// WriteAtomicWithBackup behaves like WriteAtomic but first copies any
// existing file at path to path+".bak", so a bad generation never
// destroys the previous known-good artifact.
func WriteAtomicWithBackup(path string, data []byte, perm os.FileMode) error {
	if existing, err := os.ReadFile(path); err == nil {
		if err := WriteAtomic(path+".bak", existing, perm); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading existing file %s: %w", path, err)
	}
	return WriteAtomic(path, data, perm)
}

// ExtractedTextPath is where the Extractor writes a document's plain
// text (with "--- Page N ---" markers for paginated formats).
func (w *Workspace) ExtractedTextPath(folderName string) string {
	return filepath.Join(w.DocumentDir(folderName), "extracted-text.txt")
}

// MetadataPath is where the Analyzer writes a document's metadata
// artifact as JSON.
func (w *Workspace) MetadataPath(folderName string) string {
	return filepath.Join(w.DocumentDir(folderName), "metadata.json")
}

// CaseSummaryPath is the generated case_summary.md file.
func (w *Workspace) CaseSummaryPath() string {
	return filepath.Join(w.CaseContextDir(), "case_summary.md")
}
