package recorder

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommandCaptureRequiresArgs(t *testing.T) {
	_, err := NewCommandCapture(nil)
	require.Error(t, err)
}

func TestCommandCaptureStopWithoutStart(t *testing.T) {
	cap, err := NewCommandCapture([]string{"true"})
	require.NoError(t, err)
	_, err = cap.Stop()
	require.Error(t, err)
}

func TestCommandCaptureCollectsStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cap, err := NewCommandCapture([]string{"sh", "-c", "printf audio-bytes; exec sleep 5"})
	require.NoError(t, err)
	defer cap.Close()

	require.NoError(t, cap.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	data, err := cap.Stop()
	require.NoError(t, err)
	require.Equal(t, []byte("audio-bytes"), data)

	// The capture can be started again for the next chunk.
	require.NoError(t, cap.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	data, err = cap.Stop()
	require.NoError(t, err)
	require.Equal(t, []byte("audio-bytes"), data)
}

func TestCommandCaptureDoubleStart(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cap, err := NewCommandCapture([]string{"sleep", "5"})
	require.NoError(t, err)
	defer cap.Close()

	require.NoError(t, cap.Start(context.Background()))
	require.Error(t, cap.Start(context.Background()))
	_, err = cap.Stop()
	require.NoError(t, err)
}
