package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	at := time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC)
	id := SessionID(at)
	require.Equal(t, "260202_150000", id)
	require.True(t, ValidSessionID(id))

	prefix, err := DatePrefix(id)
	require.NoError(t, err)
	require.Equal(t, "260202", prefix)

	_, err = DatePrefix("not-a-session")
	require.Error(t, err)
}

func TestChunkFileNameRoundTrip(t *testing.T) {
	name := ChunkFileName("260202_150000", 1)
	require.Equal(t, "260202_150000_chunk01.webm", name)

	sessionID, index, err := ParseChunkFileName(name)
	require.NoError(t, err)
	require.Equal(t, "260202_150000", sessionID)
	require.Equal(t, 1, index)
}

func TestValidChunkFileName(t *testing.T) {
	require.True(t, ValidChunkFileName("260202_150000_chunk01.webm"))
	require.False(t, ValidChunkFileName("recording.webm"))
	require.False(t, ValidChunkFileName("260202_15_chunk01.webm"))
	require.False(t, ValidChunkFileName("260202_150000_chunk1.webm"))
	require.False(t, ValidChunkFileName("260202_150000_chunk01.wav"))
}

func TestDocumentNameAndSequence(t *testing.T) {
	name := DocumentName("260202", 3)
	require.Equal(t, "260202_03.txt", name)

	seq, ok := ParseSequence("260202", name)
	require.True(t, ok)
	require.Equal(t, 3, seq)

	_, ok = ParseSequence("260203", name)
	require.False(t, ok)

	// Legacy timestamp names are not sequence-coded.
	_, ok = ParseSequence("260202", "260202_150000.txt")
	require.False(t, ok)
}

func TestPromotable(t *testing.T) {
	require.True(t, Promotable("260202_01.txt"))
	require.True(t, Promotable("260202_150000.txt"))
	require.False(t, Promotable("260202_01.md"))
	require.False(t, Promotable("notes.txt"))
	require.False(t, Promotable("260202_1.txt"))
}

func TestArtifactName(t *testing.T) {
	require.Equal(t, "260202_01_post.md", ArtifactName("260202_01.txt"))
}
