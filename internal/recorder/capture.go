// Package recorder implements the client side of the pipeline: a state
// machine that turns a continuous capture stream into sealed, uploaded
// chunks surviving process restarts.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

// Capture is the platform recording primitive. Stop drains everything
// buffered since Start; the codec and container internals stay opaque.
type Capture interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
	Close() error
}

// Factory acquires the capture device. Acquisition failures are surfaced
// before any session state is persisted.
type Factory func() (Capture, error)

// commandCapture runs an external capture command (ffmpeg, arecord, ...)
// writing encoded audio to stdout. Stop terminates the process and returns
// what it produced; a new process is spawned per chunk.
type commandCapture struct {
	args []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	buf     bytes.Buffer
	copyEnd chan struct{}
}

func NewCommandCapture(args []string) (Capture, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is required")
	}
	return &commandCapture{args: args}, nil
}

func (c *commandCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return fmt.Errorf("capture already running")
	}
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrCaptureFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrCaptureFailed, err)
	}
	c.buf.Reset()
	copyEnd := make(chan struct{})
	go func() {
		defer close(copyEnd)
		_, _ = io.Copy(&lockedBuffer{c: c}, stdout)
	}()
	c.cmd = cmd
	c.copyEnd = copyEnd
	return nil
}

func (c *commandCapture) Stop() ([]byte, error) {
	c.mu.Lock()
	cmd := c.cmd
	copyEnd := c.copyEnd
	c.cmd = nil
	c.copyEnd = nil
	c.mu.Unlock()
	if cmd == nil {
		return nil, fmt.Errorf("capture not running")
	}

	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-copyEnd:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-copyEnd
	}
	// The process was interrupted on purpose; its exit status is not an
	// error condition.
	_ = cmd.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	data := make([]byte, c.buf.Len())
	copy(data, c.buf.Bytes())
	c.buf.Reset()
	return data, nil
}

func (c *commandCapture) Close() error {
	c.mu.Lock()
	running := c.cmd != nil
	c.mu.Unlock()
	if running {
		_, _ = c.Stop()
	}
	return nil
}

type lockedBuffer struct {
	c *commandCapture
}

func (w *lockedBuffer) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.buf.Write(p)
}
