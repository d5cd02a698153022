package assetstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtejido-quollio/qdic-assets/internal/assetstore"
)

func TestMemory_DescendantsHonorsDepthBounds(t *testing.T) {
	m := assetstore.NewMemory()
	for _, id := range []string{"root", "child", "grandchild", "greatgrand"} {
		m.SeedAsset(id)
	}
	m.SeedPath("root", "child", 1)
	m.SeedPath("root", "grandchild", 2)
	m.SeedPath("root", "greatgrand", 3)

	got, err := m.Descendants(context.Background(), "root", 0, 2)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.ElementsMatch(t, []string{"child", "grandchild"}, ids)
}

func TestMemory_DescendantsSkipsDeleted(t *testing.T) {
	m := assetstore.NewMemory()
	m.SeedAsset("root")
	m.SeedAsset("child")
	m.SeedPath("root", "child", 1)

	n, err := m.DeleteByIDs(context.Background(), []string{"child"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.Descendants(context.Background(), "root", 0, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_DeleteByIDs(t *testing.T) {
	m := assetstore.NewMemory()
	m.SeedAsset("a")
	m.SeedAsset("b")

	n, err := m.DeleteByIDs(context.Background(), []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, m.Has("a"))

	n, err = m.DeleteByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
