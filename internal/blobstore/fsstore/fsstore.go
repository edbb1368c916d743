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

// Package fsstore is a local-filesystem Store, used in development and
// in tests in place of a real object store. Every write is versioned
// by nanosecond timestamp so PresignGET/Get can address a specific
// past version the way S3 versioning does.
package fsstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kadirpekel/caseflow/internal/model"
)

type Store struct {
	root string
}

// New returns a Store rooted at root, creating it if necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) objectDir(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (model.BlobRef, error) {
	dir := s.objectDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.BlobRef{}, fmt.Errorf("creating object directory for %s: %w", key, err)
	}

	version := strconv.FormatInt(time.Now().UnixNano(), 10)
	versionDir := filepath.Join(dir, version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return model.BlobRef{}, fmt.Errorf("creating version directory for %s: %w", key, err)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return model.BlobRef{}, fmt.Errorf("reading content for %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "blob"), data, 0o644); err != nil {
		return model.BlobRef{}, fmt.Errorf("writing blob for %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "content-type"), []byte(contentType), 0o644); err != nil {
		return model.BlobRef{}, fmt.Errorf("writing content-type for %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "LATEST"), []byte(version), 0o644); err != nil {
		return model.BlobRef{}, fmt.Errorf("writing latest pointer for %s: %w", key, err)
	}

	return model.BlobRef{Key: key, VersionID: version}, nil
}

func (s *Store) resolveVersion(ref model.BlobRef) (string, error) {
	if ref.VersionID != "" {
		return ref.VersionID, nil
	}
	latest, err := os.ReadFile(filepath.Join(s.objectDir(ref.Key), "LATEST"))
	if err != nil {
		return "", fmt.Errorf("resolving latest version for %s: %w", ref.Key, err)
	}
	return string(latest), nil
}

func (s *Store) Get(ctx context.Context, ref model.BlobRef) (io.ReadCloser, error) {
	version, err := s.resolveVersion(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.objectDir(ref.Key), version, "blob"))
	if err != nil {
		return nil, fmt.Errorf("opening blob %s@%s: %w", ref.Key, version, err)
	}
	return f, nil
}

// PresignGET returns a file:// URI for local development. It carries no
// real expiry enforcement -- that is the production s3store's job --
// but still validates the object exists before returning it.
func (s *Store) PresignGET(ctx context.Context, ref model.BlobRef, expiry time.Duration) (string, error) {
	version, err := s.resolveVersion(ref)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.objectDir(ref.Key), version, "blob")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("resolving blob path for %s: %w", ref.Key, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (s *Store) Delete(ctx context.Context, ref model.BlobRef) error {
	if err := os.RemoveAll(s.objectDir(ref.Key)); err != nil {
		return fmt.Errorf("deleting blob %s: %w", ref.Key, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	dir := s.objectDir(prefix)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting blob prefix %s: %w", prefix, err)
	}
	return nil
}
