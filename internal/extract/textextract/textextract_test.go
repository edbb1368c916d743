package textextract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
)

func TestExtractReadsFileVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("three word count"), 0o644))

	e := New()
	assert.True(t, e.CanExtract(model.FileTypeTXT))
	assert.True(t, e.CanExtract(model.FileTypeMD))
	assert.False(t, e.CanExtract(model.FileTypePDF))

	res, err := e.Extract(context.Background(), path, model.FileTypeTXT)
	require.NoError(t, err)
	assert.Equal(t, "three word count", res.Text)
	assert.Equal(t, 3, res.WordCount)
	assert.Equal(t, 1, res.PageCount)
}
