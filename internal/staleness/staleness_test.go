package staleness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubMarker struct {
	calledWith string
	err        error
}

func (s *stubMarker) MarkSummaryStale(ctx context.Context, caseID string) error {
	s.calledWith = caseID
	return s.err
}

func TestDocumentIndexedDelegatesToMarker(t *testing.T) {
	marker := &stubMarker{}
	p := New(marker)

	assert.NoError(t, p.DocumentIndexed(context.Background(), "case-1"))
	assert.Equal(t, "case-1", marker.calledWith)
}

func TestDocumentIndexedPropagatesError(t *testing.T) {
	marker := &stubMarker{err: errors.New("db down")}
	p := New(marker)

	assert.Error(t, p.DocumentIndexed(context.Background(), "case-1"))
}
