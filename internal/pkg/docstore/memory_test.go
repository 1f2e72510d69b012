package docstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDocument(t *testing.T) {
	col, id, err := SplitDocument("users/u1/cart/p1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/cart", col)
	assert.Equal(t, "p1", id)

	_, _, err = SplitDocument("users/u1/cart")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = SplitDocument("users//cart/p1")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.NoError(t, ValidateCollection("users/u1/cart"))
	assert.ErrorIs(t, ValidateCollection("users/u1"), ErrInvalidPath)
}

func TestMemory_SetMergeAndOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users/u1/cart/p1", map[string]any{"name": "Vase", "quantity": 1}, SetOptions{}))
	require.NoError(t, m.Set(ctx, "users/u1/cart/p1", map[string]any{"quantity": 3}, SetOptions{Merge: true}))

	doc, err := m.Get(ctx, "users/u1/cart/p1")
	require.NoError(t, err)
	assert.Equal(t, "Vase", doc.Data["name"])
	assert.Equal(t, 3, doc.Data["quantity"])

	require.NoError(t, m.Set(ctx, "users/u1/cart/p1", map[string]any{"quantity": 4}, SetOptions{}))
	doc, err = m.Get(ctx, "users/u1/cart/p1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "name")
}

func TestMemory_GetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "users/u1/cart/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListIsScopedAndSorted(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users/u1/cart/b", map[string]any{"quantity": 1}, SetOptions{}))
	require.NoError(t, m.Set(ctx, "users/u1/cart/a", map[string]any{"quantity": 2}, SetOptions{}))
	require.NoError(t, m.Set(ctx, "users/u2/cart/c", map[string]any{"quantity": 3}, SetOptions{}))

	docs, err := m.List(ctx, "users/u1/cart")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestMemory_CommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Commit(ctx, []Write{
		{Kind: WriteSet, Path: "users/u1/cart/p1", Data: map[string]any{"quantity": 1}},
		{Kind: WriteSet, Path: "users/u1/cart", Data: map[string]any{"quantity": 1}},
	})
	require.ErrorIs(t, err, ErrInvalidPath)

	docs, err := m.List(ctx, "users/u1/cart")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, m.Commit(ctx, []Write{
		{Kind: WriteSet, Path: "users/u1/cart/p1", Data: map[string]any{"quantity": 1}},
		{Kind: WriteSet, Path: "users/u1/cart/p2", Data: map[string]any{"quantity": 2}},
		{Kind: WriteDelete, Path: "users/u1/cart/p1"},
	}))

	docs, err = m.List(ctx, "users/u1/cart")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p2", docs[0].ID)
}

type countingCommits struct {
	*Memory
	sizes []int
}

func (c *countingCommits) Commit(ctx context.Context, writes []Write) error {
	c.sizes = append(c.sizes, len(writes))
	return c.Memory.Commit(ctx, writes)
}

func TestCommitChunked(t *testing.T) {
	ctx := context.Background()
	store := &countingCommits{Memory: NewMemory()}

	writes := make([]Write, 0, 7)
	for i := range 7 {
		writes = append(writes, Write{Kind: WriteSet, Path: Join("users/u1/cart", fmt.Sprintf("p%d", i)), Data: map[string]any{"quantity": 1}})
	}
	require.NoError(t, CommitChunked(ctx, store, writes, 3))
	assert.Equal(t, []int{3, 3, 1}, store.sizes)

	docs, err := store.List(ctx, "users/u1/cart")
	require.NoError(t, err)
	assert.Len(t, docs, 7)

	store.sizes = nil
	require.NoError(t, CommitChunked(ctx, store, nil, 3))
	assert.Empty(t, store.sizes)

	bad := []Write{writes[0], {Kind: WriteDelete, Path: "users/u1/cart"}}
	assert.ErrorIs(t, CommitChunked(ctx, store, bad, 1), ErrInvalidPath)
}
