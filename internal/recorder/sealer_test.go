package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCapture hands out a fixed payload per Stop and can be told to fail
// on the nth Start call.
type fakeCapture struct {
	mu          sync.Mutex
	starts      int
	stops       int
	closed      bool
	failOnStart int // 1-based start call that fails, 0 for never
	payload     func(stop int) []byte
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		payload: func(stop int) []byte {
			return []byte(fmt.Sprintf("audio-%d", stop))
		},
	}
}

func (f *fakeCapture) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.failOnStart != 0 && f.starts == f.failOnStart {
		return fmt.Errorf("device busy")
	}
	return nil
}

func (f *fakeCapture) Stop() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.payload(f.stops), nil
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCapture) snapshot() (starts, stops int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.closed
}

func TestSealerRestartsCapture(t *testing.T) {
	cap := newFakeCapture()
	sealer := NewSealer(cap, "audio/webm;codecs=opus")

	chunk, err := sealer.Seal(context.Background(), "260202_150000", 0, false)
	require.NoError(t, err)
	require.Equal(t, "260202_150000", chunk.SessionID)
	require.Equal(t, 0, chunk.Index)
	require.Equal(t, []byte("audio-1"), chunk.Bytes)
	require.Equal(t, "audio/webm;codecs=opus", chunk.MimeType)

	starts, stops, _ := cap.snapshot()
	require.Equal(t, 1, stops)
	require.Equal(t, 1, starts)
}

func TestSealerFinalSkipsRestart(t *testing.T) {
	cap := newFakeCapture()
	sealer := NewSealer(cap, "audio/webm;codecs=opus")

	_, err := sealer.Seal(context.Background(), "260202_150000", 3, true)
	require.NoError(t, err)

	starts, stops, _ := cap.snapshot()
	require.Equal(t, 1, stops)
	require.Equal(t, 0, starts)
}

func TestSealerRestartFailure(t *testing.T) {
	cap := newFakeCapture()
	cap.failOnStart = 1
	sealer := NewSealer(cap, "audio/webm;codecs=opus")

	_, err := sealer.Seal(context.Background(), "260202_150000", 0, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "restart capture")
}
