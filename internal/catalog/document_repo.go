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

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kadirpekel/caseflow/internal/caseflowerr"
	"github.com/kadirpekel/caseflow/internal/model"
)

// DocumentRepo reads and writes the documents and document_metadata
// tables.
type DocumentRepo struct {
	c *Catalog
}

func NewDocumentRepo(c *Catalog) *DocumentRepo { return &DocumentRepo{c: c} }

// Create inserts a new document row in the pending state.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) error {
	d.UploadedAt = time.Now().UTC()
	if d.Status == "" {
		d.Status = model.StatusPending
	}
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
INSERT INTO documents (id, case_id, filename, folder_name, file_type, document_type,
    status, blob_key, blob_bucket, blob_version_id, content_type, file_size_bytes, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`), d.ID, d.CaseID, d.Filename, d.FolderName, string(d.FileType), string(d.DocumentType),
		string(d.Status), d.Blob.Key, d.Blob.Bucket, d.Blob.VersionID, d.ContentType, d.FileSizeBytes, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Get fetches a document by id.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.c.db.QueryRowContext(ctx, r.c.bind(selectDocumentColumns+`WHERE id = ?`), id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseflowerr.New(caseflowerr.KindNotFound, fmt.Sprintf("document %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document %s: %w", id, err)
	}
	return d, nil
}

// ListByCase returns every document belonging to caseID, oldest first.
func (r *DocumentRepo) ListByCase(ctx context.Context, caseID string) ([]*model.Document, error) {
	rows, err := r.c.db.QueryContext(ctx, r.c.bind(selectDocumentColumns+`WHERE case_id = ? ORDER BY uploaded_at ASC`), caseID)
	if err != nil {
		return nil, fmt.Errorf("listing documents for case %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const selectDocumentColumns = `
SELECT id, case_id, filename, folder_name, file_type, document_type, page_count, word_count,
    status, has_text_extraction, has_metadata, rag_indexed, blob_key, blob_bucket, blob_version_id,
    retrieval_store_id, retrieval_file_uri, content_type, file_size_bytes, error_message,
    uploaded_at, processed_at
FROM documents
`

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	var blobBucket, blobVersionID, retrievalStoreID, retrievalFileURI, contentType, errorMessage sql.NullString
	var processedAt sql.NullTime
	var fileType, docType, status string
	err := row.Scan(&d.ID, &d.CaseID, &d.Filename, &d.FolderName, &fileType, &docType, &d.PageCount, &d.WordCount,
		&status, &d.HasTextExtraction, &d.HasMetadata, &d.RAGIndexed, &d.Blob.Key, &blobBucket, &blobVersionID,
		&retrievalStoreID, &retrievalFileURI, &contentType, &d.FileSizeBytes, &errorMessage,
		&d.UploadedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	d.FileType = model.FileType(fileType)
	d.DocumentType = model.DocType(docType)
	d.Status = model.ProcessingStatus(status)
	d.Blob.Bucket = blobBucket.String
	d.Blob.VersionID = blobVersionID.String
	d.Retrieval.StoreID = retrievalStoreID.String
	d.Retrieval.FileURI = retrievalFileURI.String
	d.ContentType = contentType.String
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	_ = errorMessage
	return &d, nil
}

// TransitionStatus moves a document from "from" to "to" with a single
// conditional UPDATE, so two concurrent actors for the same document
// (there should never be more than one, but defense costs nothing) can
// never both believe they own the transition.
func (r *DocumentRepo) TransitionStatus(ctx context.Context, id string, from, to model.ProcessingStatus) (bool, error) {
	res, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE documents SET status = ? WHERE id = ? AND status = ?
`), string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transitioning document %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkFailed records a terminal failure regardless of current status.
func (r *DocumentRepo) MarkFailed(ctx context.Context, id string, cause error) error {
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE documents SET status = ?, error_message = ?, processed_at = ? WHERE id = ?
`), string(model.StatusFailed), cause.Error(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking document %s failed: %w", id, err)
	}
	return nil
}

// SaveExtraction records text-extraction results and advances the
// document to "analyzing".
func (r *DocumentRepo) SaveExtraction(ctx context.Context, id string, pageCount, wordCount int) error {
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE documents SET page_count = ?, word_count = ?, has_text_extraction = ?, status = ?
WHERE id = ?
`), pageCount, wordCount, true, string(model.StatusAnalyzing), id)
	if err != nil {
		return fmt.Errorf("saving extraction for document %s: %w", id, err)
	}
	return nil
}

// SaveMetadata upserts the classification/analysis artifact and
// advances the document to "indexing".
func (r *DocumentRepo) SaveMetadata(ctx context.Context, id string, docType model.DocType, metadata *model.DocumentMetadata) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling document metadata for %s: %w", id, err)
	}

	tx, err := r.c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning metadata tx for %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.c.bind(`
UPDATE documents SET document_type = ?, has_metadata = ?, status = ? WHERE id = ?
`), string(docType), true, string(model.StatusIndexing), id); err != nil {
		return fmt.Errorf("updating document %s after analysis: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, r.c.bind(upsertMetadataSQL(r.c.dialect)),
		id, metadata.SchemaVersion, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("upserting metadata for %s: %w", id, err)
	}

	return tx.Commit()
}

func upsertMetadataSQL(dialect string) string {
	switch dialect {
	case "postgres", "sqlite":
		return `
INSERT INTO document_metadata (document_id, schema_version, payload_json, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (document_id) DO UPDATE SET
    schema_version = excluded.schema_version,
    payload_json = excluded.payload_json,
    updated_at = excluded.updated_at
`
	default: // mysql
		return `
INSERT INTO document_metadata (document_id, schema_version, payload_json, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    schema_version = VALUES(schema_version),
    payload_json = VALUES(payload_json),
    updated_at = VALUES(updated_at)
`
	}
}

// GetMetadata fetches the stored analysis artifact for a document.
func (r *DocumentRepo) GetMetadata(ctx context.Context, documentID string) (*model.DocumentMetadata, error) {
	var payload string
	err := r.c.db.QueryRowContext(ctx, r.c.bind(`
SELECT payload_json FROM document_metadata WHERE document_id = ?
`), documentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseflowerr.New(caseflowerr.KindNotFound, fmt.Sprintf("metadata for document %s not found", documentID))
	}
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", documentID, err)
	}
	var meta model.DocumentMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata for %s: %w", documentID, err)
	}
	return &meta, nil
}

// SaveIndexResult records the retrieval-store handle and marks the
// document complete.
func (r *DocumentRepo) SaveIndexResult(ctx context.Context, id, storeID, fileURI string) error {
	now := time.Now().UTC()
	_, err := r.c.db.ExecContext(ctx, r.c.bind(`
UPDATE documents SET retrieval_store_id = ?, retrieval_file_uri = ?, rag_indexed = ?,
    status = ?, processed_at = ?
WHERE id = ?
`), storeID, fileURI, true, string(model.StatusComplete), now, id)
	if err != nil {
		return fmt.Errorf("saving index result for document %s: %w", id, err)
	}
	return nil
}

// CountByCase returns the number of documents attached to caseID.
func (r *DocumentRepo) CountByCase(ctx context.Context, caseID string) (int, error) {
	var n int
	err := r.c.db.QueryRowContext(ctx, r.c.bind(`SELECT COUNT(*) FROM documents WHERE case_id = ?`), caseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents for case %s: %w", caseID, err)
	}
	return n, nil
}

// CountCompleteByCase returns the number of documents in the "complete"
// state for caseID, used to decide whether the case is summary-ready.
func (r *DocumentRepo) CountCompleteByCase(ctx context.Context, caseID string) (int, error) {
	var n int
	err := r.c.db.QueryRowContext(ctx, r.c.bind(`
SELECT COUNT(*) FROM documents WHERE case_id = ? AND status = ?
`), caseID, string(model.StatusComplete)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting complete documents for case %s: %w", caseID, err)
	}
	return n, nil
}

// Delete removes a document row.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx for document %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.c.bind(`DELETE FROM document_metadata WHERE document_id = ?`), id); err != nil {
		return fmt.Errorf("deleting metadata for document %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, r.c.bind(`DELETE FROM documents WHERE id = ?`), id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return tx.Commit()
}
