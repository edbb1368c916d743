package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
)

type stubCases struct {
	admitted      bool
	cs            *model.Case
	finishedCount int
	failed        bool
}

func (s *stubCases) Get(ctx context.Context, caseID string) (*model.Case, error) {
	if s.cs == nil {
		return &model.Case{ID: caseID}, nil
	}
	return s.cs, nil
}

func (s *stubCases) BeginSummaryGeneration(ctx context.Context, caseID string) (bool, error) {
	if !s.admitted {
		return false, nil
	}
	return true, nil
}

func (s *stubCases) FinishSummaryGeneration(ctx context.Context, caseID string, documentCount int) error {
	s.finishedCount = documentCount
	return nil
}

func (s *stubCases) FailSummaryGeneration(ctx context.Context, caseID string) error {
	s.failed = true
	return nil
}

type stubDocuments struct {
	docs     []*model.Document
	metadata map[string]*model.DocumentMetadata
}

func (s *stubDocuments) ListByCase(ctx context.Context, caseID string) ([]*model.Document, error) {
	return s.docs, nil
}

func (s *stubDocuments) GetMetadata(ctx context.Context, documentID string) (*model.DocumentMetadata, error) {
	md, ok := s.metadata[documentID]
	if !ok {
		return nil, errors.New("no metadata for " + documentID)
	}
	return md, nil
}

type stubProvider struct {
	calls int
}

func (s *stubProvider) ModelName() string { return "stub" }
func (s *stubProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	s.calls++
	return "narrative so far", 10, nil
}

func docsWithMetadata(n int) (*stubDocuments, []*model.Document) {
	sd := &stubDocuments{metadata: map[string]*model.DocumentMetadata{}}
	var docs []*model.Document
	for i := 0; i < n; i++ {
		id := "doc-" + string(rune('a'+i))
		docs = append(docs, &model.Document{
			ID: id, CaseID: "case-1", Filename: id + ".pdf",
			HasMetadata: true, Status: model.StatusComplete,
			UploadedAt: time.Unix(int64(i), 0),
		})
		sd.metadata[id] = &model.DocumentMetadata{DocumentType: model.DocTypeMotion, ExecutiveSummary: "summary of " + id}
	}
	sd.docs = docs
	return sd, docs
}

func summaryPath(root, caseID string) string {
	return filepath.Join(root, "cases", caseID, "case-context", "case_summary.md")
}

// waitForTerminalEvent blocks until sub observes the run's summary:complete
// or summary:failed event. Generation is admitted synchronously but the
// build itself runs in a background goroutine (spec's "202 semantics; work
// backgrounded"), so tests that need the run to have finished synchronize
// on its terminal Progress Bus event rather than sleeping.
func waitForTerminalEvent(t *testing.T, sub *progressbus.Subscription) model.ProgressEvent {
	t.Helper()
	for {
		select {
		case ev := <-sub.Events():
			if ev.Kind == model.EventSummaryComplete || ev.Kind == model.EventSummaryFailed {
				return ev
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a summary completion event")
		}
	}
}

func TestGenerateWritesCaseSummaryAndFinishes(t *testing.T) {
	cases := &stubCases{admitted: true}
	documents, _ := docsWithMetadata(7)
	provider := &stubProvider{}
	root := t.TempDir()
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, root)
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Generate(context.Background(), "case-1"))
	ev := waitForTerminalEvent(t, sub)

	assert.Equal(t, model.EventSummaryComplete, ev.Kind)
	assert.Equal(t, 7, cases.finishedCount)
	assert.False(t, cases.failed)
	assert.Equal(t, 2, provider.calls, "7 documents at batch size 5 means two batches")

	out, err := os.ReadFile(summaryPath(root, "case-1"))
	require.NoError(t, err)
	assert.Equal(t, "narrative so far", string(out))
}

func TestGenerateReturnsErrAlreadyGeneratingWhenNotAdmitted(t *testing.T) {
	cases := &stubCases{admitted: false}
	documents := &stubDocuments{}
	provider := &stubProvider{}

	e := New(cases, documents, provider, progressbus.New(), 5, time.Millisecond, time.Second, t.TempDir())
	err := e.Generate(context.Background(), "case-1")

	assert.ErrorIs(t, err, ErrAlreadyGenerating)
}

func TestGenerateMarksFailureOnLLMError(t *testing.T) {
	cases := &stubCases{admitted: true}
	documents, _ := docsWithMetadata(1)
	provider := &failingProvider{}
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, t.TempDir())
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Generate(context.Background(), "case-1"))
	ev := waitForTerminalEvent(t, sub)

	assert.Equal(t, model.EventSummaryFailed, ev.Kind)
	assert.True(t, cases.failed)
}

func TestGenerateFailsWhenNoCompleteDocuments(t *testing.T) {
	cases := &stubCases{admitted: true}
	documents := &stubDocuments{}
	provider := &stubProvider{}
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, t.TempDir())
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Generate(context.Background(), "case-1"))
	ev := waitForTerminalEvent(t, sub)

	assert.Equal(t, model.EventSummaryFailed, ev.Kind)
	assert.True(t, cases.failed)
}

func TestUpdateRequiresExistingSummary(t *testing.T) {
	cases := &stubCases{admitted: true}
	documents, _ := docsWithMetadata(2)
	provider := &stubProvider{}
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, t.TempDir())
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Update(context.Background(), "case-1"))
	ev := waitForTerminalEvent(t, sub)

	assert.Equal(t, model.EventSummaryFailed, ev.Kind)
	assert.True(t, cases.failed)
}

func TestUpdateOnlyIncludesDocumentsUploadedAfterPriorGeneration(t *testing.T) {
	root := t.TempDir()
	path := summaryPath(root, "case-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("prior narrative"), 0o644))

	cutoff := time.Unix(3, 0)
	cases := &stubCases{admitted: true, cs: &model.Case{ID: "case-1", SummaryGeneratedAt: &cutoff}}
	documents, _ := docsWithMetadata(7)
	provider := &stubProvider{}
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, root)
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Update(context.Background(), "case-1"))
	ev := waitForTerminalEvent(t, sub)

	assert.Equal(t, model.EventSummaryComplete, ev.Kind)
	assert.Equal(t, 3, cases.finishedCount, "only documents uploaded at unix 4,5,6 are newer than the cutoff")
}

func TestRegenerateBacksUpExistingSummary(t *testing.T) {
	root := t.TempDir()
	path := summaryPath(root, "case-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old narrative"), 0o644))

	cases := &stubCases{admitted: true}
	documents, _ := docsWithMetadata(2)
	provider := &stubProvider{}
	bus := progressbus.New()

	e := New(cases, documents, provider, bus, 5, time.Millisecond, time.Second, root)
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	require.NoError(t, e.Regenerate(context.Background(), "case-1"))
	waitForTerminalEvent(t, sub)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "old narrative", string(backup))
}

type failingProvider struct{}

func (failingProvider) ModelName() string { return "stub" }
func (failingProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	return "", 0, errors.New("provider unavailable")
}
