package cachefs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugifyFolderName(t *testing.T) {
	assert.Equal(t, "motion_to_dismiss", SlugifyFolderName("Motion to Dismiss.pdf"))
	assert.Equal(t, "exhibit_a_1", SlugifyFolderName("Exhibit A (1).docx"))
	assert.Equal(t, "document", SlugifyFolderName("???.pdf"))
}

func TestSlugifyFolderNameCapsAt100Chars(t *testing.T) {
	long := strings.Repeat("a", 150) + ".pdf"
	slug := SlugifyFolderName(long)
	assert.LessOrEqual(t, len(slug), 100)
	assert.Equal(t, strings.Repeat("a", 100), slug)
}

func TestEnsureLayoutCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	w := NewWorkspace(root, "case-1")
	require.NoError(t, w.EnsureLayout())

	for _, dir := range []string{w.Root(), w.IntakeDir(), w.CaseContextDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWriteAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extracted.txt")

	require.NoError(t, WriteAtomic(path, []byte("--- Page 1 ---\nhello"), 0o644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nhello", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file should remain")
}

func TestWriteAtomicWithBackupPreservesPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case_summary.md")

	require.NoError(t, WriteAtomic(path, []byte("v1"), 0o644))
	require.NoError(t, WriteAtomicWithBackup(path, []byte("v2"), 0o644))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(current))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(backup))
}

func TestDocumentAndMetadataPaths(t *testing.T) {
	w := NewWorkspace("/data", "case-1")
	assert.Contains(t, w.ExtractedTextPath("motion_pdf"), filepath.Join("documents", "motion_pdf", "extracted-text.txt"))
	assert.Contains(t, w.MetadataPath("motion_pdf"), filepath.Join("documents", "motion_pdf", "metadata.json"))
}
