package fsstore

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "case-1/doc-1/motion.pdf", strings.NewReader("hello world"), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.VersionID)

	rc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestPutTwiceVersionsIndependently(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	refV1, err := s.Put(ctx, "case-1/doc-1/motion.pdf", strings.NewReader("v1"), "text/plain")
	require.NoError(t, err)
	refV2, err := s.Put(ctx, "case-1/doc-1/motion.pdf", strings.NewReader("v2"), "text/plain")
	require.NoError(t, err)
	assert.NotEqual(t, refV1.VersionID, refV2.VersionID)

	rc, err := s.Get(ctx, refV1)
	require.NoError(t, err)
	v1Data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "v1", string(v1Data))

	latest, err := s.Get(ctx, model.BlobRef{Key: "case-1/doc-1/motion.pdf"})
	require.NoError(t, err)
	latestData, _ := io.ReadAll(latest)
	latest.Close()
	assert.Equal(t, "v2", string(latestData))
}

func TestPresignGETReturnsFileURI(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "case-1/doc-1/motion.pdf", strings.NewReader("data"), "application/pdf")
	require.NoError(t, err)

	url, err := s.PresignGET(ctx, ref, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
}

func TestDeletePrefixRemovesAllDocuments(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Put(ctx, "case-1/doc-1/motion.pdf", strings.NewReader("a"), "application/pdf")
	require.NoError(t, err)
	_, err = s.Put(ctx, "case-1/doc-2/response.pdf", strings.NewReader("b"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, s.DeletePrefix(ctx, "case-1"))

	_, err = s.Get(ctx, model.BlobRef{Key: "case-1/doc-1/motion.pdf"})
	assert.Error(t, err)
}
