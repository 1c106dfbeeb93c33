package aggregate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/repo"
	"github.com/voxnote/voxnote/internal/sequence"
)

func newTestAggregator(t *testing.T) (*Aggregator, filestore.Store) {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "agg.db"))
	require.NoError(t, err)
	require.NoError(t, repo.ApplyMigrations(db))
	t.Cleanup(func() { _ = db.Close() })

	newStore := func() filestore.Store {
		store, err := filestore.New(config.StoreConfig{
			Type: "local",
			Data: map[string]interface{}{"dir": t.TempDir()},
		})
		require.NoError(t, err)
		return store
	}
	text := newStore()
	allocator := sequence.NewAllocator(repo.NewSequenceRepo(db), text, newStore())

	agg := NewAggregator(allocator, text)
	agg.now = func() time.Time {
		return time.Date(2026, 2, 2, 15, 4, 5, 0, time.UTC)
	}
	return agg, text
}

func TestAppendCreatesDocumentWithHeader(t *testing.T) {
	agg, text := newTestAggregator(t)
	ctx := context.Background()

	name, err := agg.Append(ctx, "260202_150000", 0, "first transcript")
	require.NoError(t, err)
	require.Equal(t, "260202_01.txt", name)

	data, err := filestore.ReadAll(ctx, text, name)
	require.NoError(t, err)
	content := string(data)
	require.True(t, strings.HasPrefix(content, "=== Session Transcript ==="))
	require.Contains(t, content, "Original Session: 260202_150000")
	require.Contains(t, content, "--- Chunk 00 (15:04:05) ---\nfirst transcript")
}

func TestAppendKeepsBlockOrderAndHeader(t *testing.T) {
	agg, text := newTestAggregator(t)
	ctx := context.Background()

	name, err := agg.Append(ctx, "260202_150000", 0, "alpha")
	require.NoError(t, err)
	before, err := filestore.ReadAll(ctx, text, name)
	require.NoError(t, err)
	headerEnd := strings.Index(string(before), "\n\n---")
	require.Positive(t, headerEnd)
	header := string(before[:headerEnd])

	_, err = agg.Append(ctx, "260202_150000", 1, "bravo")
	require.NoError(t, err)
	_, err = agg.Append(ctx, "260202_150000", 2, "charlie")
	require.NoError(t, err)

	data, err := filestore.ReadAll(ctx, text, name)
	require.NoError(t, err)
	content := string(data)

	require.True(t, strings.HasPrefix(content, header))
	require.Less(t, strings.Index(content, "--- Chunk 00"), strings.Index(content, "--- Chunk 01"))
	require.Less(t, strings.Index(content, "--- Chunk 01"), strings.Index(content, "--- Chunk 02"))
}

func TestAppendArrivalOrderPreserved(t *testing.T) {
	agg, text := newTestAggregator(t)
	ctx := context.Background()

	// Chunk 1 transcribes before chunk 0; blocks land in arrival order.
	name, err := agg.Append(ctx, "260202_150000", 1, "late chunk first")
	require.NoError(t, err)
	_, err = agg.Append(ctx, "260202_150000", 0, "early chunk second")
	require.NoError(t, err)

	data, err := filestore.ReadAll(ctx, text, name)
	require.NoError(t, err)
	content := string(data)
	require.Less(t, strings.Index(content, "--- Chunk 01"), strings.Index(content, "--- Chunk 00"))
}

func TestAppendSeparateSessionsSeparateDocuments(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	first, err := agg.Append(ctx, "260202_150000", 0, "a")
	require.NoError(t, err)
	second, err := agg.Append(ctx, "260202_160000", 0, "b")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
