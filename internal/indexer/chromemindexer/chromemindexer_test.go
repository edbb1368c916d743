package chromemindexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/indexer"
)

func TestIndexReturnsDeterministicStoreIDPerCase(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)

	storeID1, uri1, err := idx.Index(context.Background(), indexer.Input{
		CaseID: "case-1", DocumentID: "doc-1", Filename: "a.txt", Text: "hello world",
	})
	require.NoError(t, err)
	assert.Equal(t, indexer.StoreID("case-1"), storeID1)
	assert.Contains(t, uri1, storeID1)

	storeID2, _, err := idx.Index(context.Background(), indexer.Input{
		CaseID: "case-1", DocumentID: "doc-2", Filename: "b.txt", Text: "more text",
	})
	require.NoError(t, err)
	assert.Equal(t, storeID1, storeID2, "documents in the same case share a collection")
}

func TestDeleteCaseRemovesCollection(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)

	_, _, err = idx.Index(context.Background(), indexer.Input{CaseID: "case-2", DocumentID: "doc-1", Text: "x"})
	require.NoError(t, err)

	assert.NoError(t, idx.DeleteCase(context.Background(), "case-2"))
	assert.NoError(t, idx.DeleteCase(context.Background(), "case-2"), "deleting twice is a no-op")
}
