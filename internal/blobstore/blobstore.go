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

// Package blobstore is the durable home for an uploaded document's raw
// bytes. The Catalog records a BlobRef (key, bucket, version); this
// package resolves that reference to an actual read, write, or
// presigned URL against whichever backend is configured.
package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/kadirpekel/caseflow/internal/model"
)

// Store is the backend-agnostic blob API. Both implementations in this
// package (fsstore for local/dev, s3store for production) satisfy it.
type Store interface {
	// Put uploads content under key and returns the ref assigned by the
	// backend (the version id, when the backend supports versioning).
	Put(ctx context.Context, key string, content io.Reader, contentType string) (model.BlobRef, error)

	// Get opens the object for ref for reading. The caller must Close it.
	Get(ctx context.Context, ref model.BlobRef) (io.ReadCloser, error)

	// PresignGET returns a time-limited URL a browser can GET directly,
	// valid for expiry.
	PresignGET(ctx context.Context, ref model.BlobRef, expiry time.Duration) (string, error)

	// Delete removes a single object.
	Delete(ctx context.Context, ref model.BlobRef) error

	// DeletePrefix removes every object whose key has the given prefix,
	// used when a document is deleted to sweep its whole blob tree.
	DeletePrefix(ctx context.Context, prefix string) error
}
