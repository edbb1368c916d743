package ingress

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/caseflow/internal/blobstore/fsstore"
	"github.com/kadirpekel/caseflow/internal/catalog"
	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
	"github.com/kadirpekel/caseflow/internal/progressws"
	"github.com/kadirpekel/caseflow/internal/summary"
)

func newTestServer(t *testing.T) (*Server, *catalog.CaseRepo, *catalog.DocumentRepo, *fakeSubmitter) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.Open(context.Background(), db, "sqlite")
	require.NoError(t, err)

	cases := catalog.NewCaseRepo(cat)
	documents := catalog.NewDocumentRepo(cat)

	blobs, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	submitter := &fakeSubmitter{}

	s := &Server{
		Cases:         cases,
		Documents:     documents,
		Blobs:         blobs,
		Coordinator:   submitter,
		Summaries:     &fakeSummaries{},
		Progress:      progressws.New(progressbus.New()),
		WorkspaceRoot: t.TempDir(),
		PresignExpiry: 3600 * time.Second,
	}
	return s, cases, documents, submitter
}

type fakeSubmitter struct {
	mu   sync.Mutex
	docs []*model.Document
}

func (f *fakeSubmitter) Submit(ctx context.Context, doc *model.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
}

type fakeSummaries struct {
	err error
}

func (f *fakeSummaries) Generate(ctx context.Context, caseID string) error   { return f.err }
func (f *fakeSummaries) Update(ctx context.Context, caseID string) error     { return f.err }
func (f *fakeSummaries) Regenerate(ctx context.Context, caseID string) error { return f.err }

func seedCase(t *testing.T, cases *catalog.CaseRepo, id, userID string) *model.Case {
	t.Helper()
	cs := &model.Case{ID: id, Title: "Smith v. Jones", UserID: userID, WorkspacePath: "/work/" + id}
	require.NoError(t, cases.Create(context.Background(), cs))
	return cs
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadCreatesDocumentAndSubmitsToCoordinator(t *testing.T) {
	s, cases, documents, submitter := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")

	body, contentType := multipartUpload(t, "motion.pdf", "hello world")
	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	docs, err := documents.ListByCase(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.StatusPending, docs[0].Status)
	assert.Equal(t, model.FileTypePDF, docs[0].FileType)

	require.Eventually(t, func() bool {
		submitter.mu.Lock()
		defer submitter.mu.Unlock()
		return len(submitter.docs) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	s, cases, _, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")

	body, contentType := multipartUpload(t, "malware.exe", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file extension")
}

func TestUploadRejectsMissingCase(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "motion.pdf", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/cases/nope/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocumentsRequiresOwnership(t *testing.T) {
	s, cases, documents, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")
	require.NoError(t, documents.Create(context.Background(), &model.Document{
		ID: "doc-1", CaseID: "case-1", Filename: "a.pdf", FolderName: "a", FileType: model.FileTypePDF,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cases/case-1/documents", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "doc-1")
}

func TestDeleteDocumentRemovesCatalogRowWithNoBlobOrCacheFolder(t *testing.T) {
	s, cases, documents, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")
	require.NoError(t, documents.Create(context.Background(), &model.Document{
		ID: "doc-1", CaseID: "case-1", Filename: "a.pdf", FolderName: "a", FileType: model.FileTypePDF,
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	_, err := documents.Get(context.Background(), "doc-1")
	assert.Error(t, err, "document row must be gone after delete")
}

func TestSummaryStatusReflectsCaseRow(t *testing.T) {
	s, cases, _, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/cases/case-1/summary/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":""`)
}

func TestSummaryGenerateReturnsSuccessImmediately(t *testing.T) {
	s, cases, _, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/summary/generate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestSummaryGenerateReturnsConflictWhenAlreadyGenerating(t *testing.T) {
	s, cases, _, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")
	s.Summaries = &fakeSummaries{err: summary.ErrAlreadyGenerating}

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/summary/generate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPreviewURLFallsBackToLocalWhenNoBlobKey(t *testing.T) {
	s, cases, documents, _ := newTestServer(t)
	seedCase(t, cases, "case-1", "user-1")
	require.NoError(t, documents.Create(context.Background(), &model.Document{
		ID: "doc-1", CaseID: "case-1", Filename: "a.pdf", FolderName: "a", FileType: model.FileTypePDF,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/preview-url", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isLocal":true`)
}
