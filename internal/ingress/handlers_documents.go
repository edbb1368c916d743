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

package ingress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/caseflow/internal/authn"
	"github.com/kadirpekel/caseflow/internal/caseflowerr"
	"github.com/kadirpekel/caseflow/internal/cachefs"
	"github.com/kadirpekel/caseflow/internal/model"
)

// DocumentView is the wire shape for a document returned to clients,
// the Catalog row reshaped to the fields the UI actually needs.
type DocumentView struct {
	ID            string     `json:"id"`
	CaseID        string     `json:"caseId"`
	Filename      string     `json:"filename"`
	FileType      string     `json:"fileType"`
	DocumentType  string     `json:"documentType"`
	PageCount     int        `json:"pageCount"`
	WordCount     int        `json:"wordCount"`
	Status        string     `json:"status"`
	HasMetadata   bool       `json:"hasMetadata"`
	RAGIndexed    bool       `json:"ragIndexed"`
	FileSizeBytes int64      `json:"fileSizeBytes"`
	UploadedAt    time.Time  `json:"uploadedAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

func toDocumentView(d *model.Document) DocumentView {
	return DocumentView{
		ID: d.ID, CaseID: d.CaseID, Filename: d.Filename,
		FileType: string(d.FileType), DocumentType: string(d.DocumentType),
		PageCount: d.PageCount, WordCount: d.WordCount, Status: string(d.Status),
		HasMetadata: d.HasMetadata, RAGIndexed: d.RAGIndexed,
		FileSizeBytes: d.FileSizeBytes, UploadedAt: d.UploadedAt, ProcessedAt: d.ProcessedAt,
	}
}

// loadOwnedCase fetches the case at caseID and verifies it belongs to
// the caller, writing the appropriate 404/403 response itself on
// failure. The boolean result tells the caller whether to proceed.
func (s *Server) loadOwnedCase(w http.ResponseWriter, r *http.Request, caseID string) (*model.Case, bool) {
	cs, err := s.Cases.Get(r.Context(), caseID)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	if claims := authn.ClaimsFromContext(r.Context()); claims != nil && claims.Subject != cs.UserID {
		respondError(w, caseflowerr.New(caseflowerr.KindOwnership, "case is not owned by the caller"))
		return nil, false
	}
	return cs, true
}

// loadOwnedDocument fetches a document and verifies its owning case
// belongs to the caller.
func (s *Server) loadOwnedDocument(w http.ResponseWriter, r *http.Request, documentID string) (*model.Document, bool) {
	doc, err := s.Documents.Get(r.Context(), documentID)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	if _, ok := s.loadOwnedCase(w, r, doc.CaseID); !ok {
		return nil, false
	}
	return doc, true
}

// handleUpload implements the ordered, individually-fallible steps in
// spec §4.1: ownership check, extension classification, folder slug,
// document id allocation, Blob Store upload (best-effort), Cache FS
// staging, Catalog insert, Coordinator kickoff -- in that order, with
// bytes durable before any background work is scheduled.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	cs, ok := s.loadOwnedCase(w, r, caseID)
	if !ok {
		return
	}

	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = 100 * 1024 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, caseflowerr.Wrap(caseflowerr.KindInput, "upload exceeds the maximum allowed size or is malformed", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, caseflowerr.Wrap(caseflowerr.KindInput, "missing multipart field \"file\"", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	fileType, supported := model.ExtensionToFileType[ext]
	if !supported {
		respondError(w, caseflowerr.New(caseflowerr.KindInput,
			fmt.Sprintf("unsupported file extension %q, supported: %s", ext, strings.Join(model.SupportedExtensions, ", "))))
		return
	}

	folderName := cachefs.SlugifyFolderName(header.Filename)
	documentID := uuid.NewString()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	blobKey := fmt.Sprintf("users/%s/cases/%s/documents/%s/original.%s", cs.UserID, caseID, documentID, ext)

	staged, stagedSize, err := stageUpload(file)
	if err != nil {
		respondError(w, fmt.Errorf("staging upload: %w", err))
		return
	}
	defer staged.cleanup()

	blobRef, blobErr := s.Blobs.Put(r.Context(), blobKey, staged.reader(), contentType)
	if blobErr != nil {
		slog.Error("ingress: blob store upload failed, continuing in local-only mode", "document_id", documentID, "error", blobErr)
	}

	ws := s.workspace(caseID)
	if err := ws.EnsureLayout(); err != nil {
		respondError(w, fmt.Errorf("preparing case workspace: %w", err))
		return
	}
	intakePath := filepath.Join(ws.IntakeDir(), documentID+"."+ext)
	if err := staged.copyTo(intakePath); err != nil {
		respondError(w, fmt.Errorf("staging to cache fs intake: %w", err))
		return
	}

	doc := &model.Document{
		ID: documentID, CaseID: caseID, Filename: header.Filename, FolderName: folderName,
		FileType: fileType, Status: model.StatusPending,
		Blob: blobRef, ContentType: contentType, FileSizeBytes: stagedSize,
	}
	if err := s.Documents.Create(r.Context(), doc); err != nil {
		respondError(w, fmt.Errorf("recording document: %w", err))
		return
	}

	go s.Coordinator.Submit(context.Background(), doc)

	resp := map[string]any{"success": true, "documentId": documentID}
	if blobRef.Key != "" {
		resp["s3Key"] = blobRef.Key
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if _, ok := s.loadOwnedCase(w, r, caseID); !ok {
		return
	}
	docs, err := s.Documents.ListByCase(r.Context(), caseID)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, toDocumentView(d))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadOwnedDocument(w, r, chi.URLParam(r, "documentID"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toDocumentView(doc))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if _, ok := s.loadOwnedCase(w, r, caseID); !ok {
		return
	}
	docs, err := s.Documents.ListByCase(r.Context(), caseID)
	if err != nil {
		respondError(w, err)
		return
	}
	stats := map[string]int{"total": len(docs)}
	for _, d := range docs {
		stats[string(d.Status)]++
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleDelete implements spec §4.1's delete contract: blob tree, Cache
// FS folder, and retrieval-store unregister are all best-effort and
// logged on failure; only the Catalog row delete is required to
// succeed, and it always runs last.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadOwnedDocument(w, r, chi.URLParam(r, "documentID"))
	if !ok {
		return
	}

	if doc.Blob.Key != "" {
		prefix := filepath.Dir(doc.Blob.Key)
		if err := s.Blobs.DeletePrefix(r.Context(), prefix); err != nil {
			slog.Warn("ingress: blob prefix delete failed", "document_id", doc.ID, "error", err)
		}
	}

	docDir := s.workspace(doc.CaseID).DocumentDir(doc.FolderName)
	if err := os.RemoveAll(docDir); err != nil {
		slog.Warn("ingress: cache fs document delete failed", "document_id", doc.ID, "error", err)
	}

	if s.Retrieval != nil && doc.Retrieval.StoreID != "" {
		if err := s.Retrieval.Unregister(doc.Retrieval.StoreID, doc.Retrieval.FileURI); err != nil {
			slog.Warn("ingress: retrieval store unregister failed", "document_id", doc.ID, "error", err)
		}
	}

	if err := s.Documents.Delete(r.Context(), doc.ID); err != nil {
		respondError(w, fmt.Errorf("deleting document %s: %w", doc.ID, err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePreviewURL(w http.ResponseWriter, r *http.Request) {
	s.handlePresign(w, r, "inline")
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	s.handlePresign(w, r, "attachment")
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request, disposition string) {
	doc, ok := s.loadOwnedDocument(w, r, chi.URLParam(r, "documentID"))
	if !ok {
		return
	}

	if doc.Blob.Key == "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"url": fmt.Sprintf("/api/documents/%s/download", doc.ID), "filename": doc.Filename,
			"isLocal": true, "expiresIn": 0,
		})
		return
	}

	url, err := s.Blobs.PresignGET(r.Context(), doc.Blob, s.PresignExpiry)
	if err != nil {
		respondError(w, fmt.Errorf("presigning %s: %w", disposition, err))
		return
	}

	resp := map[string]any{
		"url": url, "filename": doc.Filename, "expiresIn": int(s.PresignExpiry.Seconds()),
	}
	if disposition == "inline" {
		resp["contentType"] = doc.ContentType
		resp["previewType"] = string(doc.FileType)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleDownload streams the original bytes through the API instead of
// a pre-signed URL. It always reads them from the Blob Store: a document
// uploaded in local-only mode has an empty BlobRef, so this request fails
// for it; the Cache FS intake copy is not consulted.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadOwnedDocument(w, r, chi.URLParam(r, "documentID"))
	if !ok {
		return
	}
	rc, err := s.Blobs.Get(r.Context(), doc.Blob)
	if err != nil {
		respondError(w, fmt.Errorf("fetching blob for %s: %w", doc.ID, err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, doc.Filename))
	io.Copy(w, rc)
}
