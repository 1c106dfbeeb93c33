package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxnote/voxnote/internal/config"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

func newLocalStore(t *testing.T) Store {
	t.Helper()
	store, err := New(config.StoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	return store
}

func TestLocalStoreSaveOpenStat(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	content := "hello"
	require.NoError(t, store.Save(ctx, "a.txt", strings.NewReader(content), int64(len(content))))

	data, err := ReadAll(ctx, store, "a.txt")
	require.NoError(t, err)
	require.Equal(t, content, string(data))

	entry, err := store.Stat(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", entry.Key)
	require.Equal(t, int64(len(content)), entry.Size)
	require.False(t, entry.ModTime.IsZero())
}

func TestLocalStoreMissingKey(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	_, err := store.Open(ctx, "missing.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = store.Stat(ctx, "missing.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, store.Remove(ctx, "missing.txt"), appErr.ErrNotFound)
}

func TestLocalStoreRejectsPathKeys(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.Error(t, store.Save(ctx, "../escape.txt", strings.NewReader("x"), 1))
	_, err := store.Open(ctx, "dir/inner.txt")
	require.Error(t, err)
}

func TestLocalStoreList(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a.txt", strings.NewReader("a"), 1))
	require.NoError(t, store.Save(ctx, "b.txt", strings.NewReader("b"), 1))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, keys)
}

func TestMoveArchivesObject(t *testing.T) {
	src := newLocalStore(t)
	dst := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, src.Save(ctx, "doc.txt", strings.NewReader("body"), 4))
	require.NoError(t, Move(ctx, src, dst, "doc.txt"))

	_, err := src.Stat(ctx, "doc.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	data, err := ReadAll(ctx, dst, "doc.txt")
	require.NoError(t, err)
	require.Equal(t, "body", string(data))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.StoreConfig{Type: "ftp"})
	require.Error(t, err)
}
