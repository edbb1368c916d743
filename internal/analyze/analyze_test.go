package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
)

type stubProvider struct {
	responses []string
	errs      []error
	calls     int

	lastUserPrompt string
}

func (s *stubProvider) ModelName() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	i := s.calls
	s.calls++
	s.lastUserPrompt = userPrompt
	var resp string
	var err error
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, 10, err
}

func TestAnalyzeParsesWellFormedJSON(t *testing.T) {
	provider := &stubProvider{responses: []string{`{"document_type":"Motion","classification_confidence":0.9,"executive_summary":"s","main_arguments":["a"],"requested_relief":"r"}`}}
	a := New(provider, 50000, time.Second)

	md := a.Analyze(context.Background(), "some text", 3, 100, "pdfextract")
	assert.Equal(t, model.DocTypeMotion, md.DocumentType)
	assert.Equal(t, 0.9, md.ClassificationConf)
	assert.Equal(t, 3, md.PageCount)
	assert.Equal(t, 100, md.WordCount)
}

func TestAnalyzeTolerasCodeFence(t *testing.T) {
	provider := &stubProvider{responses: []string{"```json\n{\"document_type\":\"Order\"}\n```"}}
	a := New(provider, 50000, time.Second)

	md := a.Analyze(context.Background(), "text", 1, 10, "textextract")
	assert.Equal(t, model.DocTypeOrder, md.DocumentType)
	assert.Equal(t, defaultConfidence, md.ClassificationConf)
}

func TestAnalyzeFallsBackOnUnparseableResponse(t *testing.T) {
	provider := &stubProvider{responses: []string{"not json", "still not json", "nope", "nope"}}
	a := New(provider, 50000, 50*time.Millisecond)

	md := a.Analyze(context.Background(), "text", 2, 20, "pdfextract")
	assert.Equal(t, model.DocTypeUnknown, md.DocumentType)
	assert.Equal(t, fallbackConfidence, md.ClassificationConf)
	assert.Equal(t, 2, md.PageCount)
}

func TestAnalyzeRetriesOnTransportError(t *testing.T) {
	provider := &stubProvider{
		responses: []string{"", "", `{"document_type":"Evidence"}`},
		errs:      []error{errors.New("boom"), errors.New("boom"), nil},
	}
	// The third call comes after the 2s and 4s retry delays, so the
	// Analyzer's deadline has to outlast both.
	a := New(provider, 50000, 10*time.Second)

	md := a.Analyze(context.Background(), "text", 1, 5, "textextract")
	assert.Equal(t, model.DocTypeEvidence, md.DocumentType)
	assert.Equal(t, 3, provider.calls)
}

func TestAnalyzeTruncatesOversizedText(t *testing.T) {
	provider := &stubProvider{responses: []string{`{"document_type":"Notice"}`}}
	a := New(provider, 10, time.Second)

	longText := "this text is definitely longer than ten characters"
	md := a.Analyze(context.Background(), longText, 1, 1, "textextract")
	require.Equal(t, model.DocTypeNotice, md.DocumentType)
	assert.Contains(t, provider.lastUserPrompt, longText[:10])
	assert.NotContains(t, provider.lastUserPrompt, longText[:11])
}
