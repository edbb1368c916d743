package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
)

type stubExtractor struct {
	ft     model.FileType
	result *Result
}

func (s *stubExtractor) CanExtract(ft model.FileType) bool { return ft == s.ft }
func (s *stubExtractor) Extract(ctx context.Context, path string, ft model.FileType) (*Result, error) {
	return s.result, nil
}

func TestRegistryDispatchesByFileType(t *testing.T) {
	reg := NewRegistry(
		&stubExtractor{ft: model.FileTypeTXT, result: &Result{Text: "hi", WordCount: 1}},
		&stubExtractor{ft: model.FileTypePDF, result: &Result{Text: "pdf", PageCount: 3, WordCount: 1}},
	)

	res, err := reg.Extract(context.Background(), "x.txt", model.FileTypeTXT)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, 1, res.PageCount, "zero page count is floored to 1")

	res, err = reg.Extract(context.Background(), "x.pdf", model.FileTypePDF)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageCount)
}

func TestRegistryReturnsErrorForUnregisteredType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Extract(context.Background(), "x.pdf", model.FileTypePDF)
	assert.Error(t, err)
}
