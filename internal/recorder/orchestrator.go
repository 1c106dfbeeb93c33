package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/model"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
	"github.com/voxnote/voxnote/internal/pkg/naming"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateSealing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateSealing:
		return "sealing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type OrchestratorConfig struct {
	ChunkDuration time.Duration
	MaxDuration   time.Duration
	MaxChunks     int
	MimeType      string
}

// Orchestrator drives a recording session: capture runs continuously,
// a timer seals it into chunks, sealed chunks are uploaded without ever
// blocking the loop, and the session state is persisted after every seal
// so a crash resumes with the next unused index.
type Orchestrator struct {
	cfg      OrchestratorConfig
	factory  Factory
	states   *StateStore
	uploader Uploader

	mu        sync.Mutex
	state     State
	sess      *model.Session
	capture   Capture
	sealer    *Sealer
	startedAt time.Time
	runErr    error

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	uploads  sync.WaitGroup
}

func NewOrchestrator(cfg OrchestratorConfig, factory Factory, states *StateStore, uploader Uploader) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		factory:  factory,
		states:   states,
		uploader: uploader,
		state:    StateIdle,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Session returns a snapshot of the active session, or nil.
func (o *Orchestrator) Session() *model.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return nil
	}
	cp := *o.sess
	return &cp
}

// Start transitions idle to recording. With resume set, the persisted
// session is picked up and chunk numbering continues where it left off;
// otherwise a fresh session is created. A capture acquisition failure
// returns to idle without persisting anything.
func (o *Orchestrator) Start(ctx context.Context, resume bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle && o.state != StateStopped {
		return fmt.Errorf("cannot start while %s", o.state)
	}
	o.state = StateStarting

	capture, err := o.factory()
	if err != nil {
		o.state = StateIdle
		return fmt.Errorf("%w: %v", appErr.ErrCaptureFailed, err)
	}

	var sess *model.Session
	if resume {
		sess, err = o.states.Load()
		if err != nil {
			_ = capture.Close()
			o.state = StateIdle
			return fmt.Errorf("load session: %w", err)
		}
		if sess.NextChunkIndex >= o.cfg.MaxChunks {
			_ = capture.Close()
			o.state = StateIdle
			return fmt.Errorf("session %s already used all %d chunks: %w",
				sess.ID, o.cfg.MaxChunks, appErr.ErrSessionTerminated)
		}
	} else {
		sess = &model.Session{ID: naming.SessionID(time.Now())}
	}
	if err := o.states.Save(sess); err != nil {
		_ = capture.Close()
		o.state = StateIdle
		return fmt.Errorf("persist session: %w", err)
	}

	if err := o.capStart(ctx, capture); err != nil {
		_ = capture.Close()
		o.state = StateIdle
		return err
	}

	o.capture = capture
	o.sealer = NewSealer(capture, o.cfg.MimeType)
	o.sess = sess
	o.startedAt = time.Now()
	o.runErr = nil
	o.stopOnce = sync.Once{}
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.state = StateRecording

	logutil.GetLogger(ctx).Info("recording started",
		zap.String("session_id", sess.ID),
		zap.Int("next_chunk_index", sess.NextChunkIndex),
		zap.Bool("resumed", resume))
	go o.run(ctx)
	return nil
}

func (o *Orchestrator) capStart(ctx context.Context, capture Capture) error {
	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrCaptureFailed, err)
	}
	return nil
}

// Stop requests a final seal and blocks until the session has shut down,
// including all in-flight uploads.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	stopCh, doneCh := o.stopCh, o.doneCh
	o.mu.Unlock()
	if stopCh == nil {
		return fmt.Errorf("no active session")
	}
	o.stopOnce.Do(func() { close(stopCh) })
	<-doneCh
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runErr
}

// Done closes when the session ends, whether by Stop, by hitting the
// duration ceiling, or by a fatal capture error.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.doneCh
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.doneCh)
	timer := time.NewTimer(o.cfg.ChunkDuration)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			last := o.atCeiling()
			if err := o.seal(ctx, last); err != nil {
				o.fail(ctx, err)
				return
			}
			if last {
				logutil.GetLogger(ctx).Info("recording ceiling reached")
				o.finish(ctx)
				return
			}
			o.setState(StateRecording)
			timer.Reset(o.cfg.ChunkDuration)
		case <-o.stopCh:
			o.setState(StateStopping)
			if err := o.seal(ctx, true); err != nil {
				o.fail(ctx, err)
				return
			}
			o.finish(ctx)
			return
		case <-ctx.Done():
			o.setState(StateStopping)
			if err := o.seal(ctx, true); err != nil {
				o.fail(ctx, err)
				return
			}
			o.finish(ctx)
			return
		}
	}
}

// atCeiling reports whether the chunk about to be sealed must be the last
// one, either by total duration or by chunk count.
func (o *Orchestrator) atCeiling() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if time.Since(o.startedAt) >= o.cfg.MaxDuration {
		return true
	}
	return o.sess.NextChunkIndex+1 >= o.cfg.MaxChunks
}

func (o *Orchestrator) seal(ctx context.Context, final bool) error {
	o.mu.Lock()
	if o.state != StateStopping {
		o.state = StateSealing
	}
	sess := o.sess
	sealer := o.sealer
	index := sess.NextChunkIndex
	o.mu.Unlock()

	chunk, err := sealer.Seal(ctx, sess.ID, index, final)
	if err != nil {
		return err
	}
	if len(chunk.Bytes) == 0 {
		logutil.GetLogger(ctx).Warn("empty chunk skipped",
			zap.String("session_id", sess.ID), zap.Int("chunk_index", index))
		return nil
	}

	// Uploads run in the background; a slow or failing endpoint must not
	// stall the capture restart. The session context may already be
	// cancelled when the final chunk is sealed (SIGINT path), so uploads
	// get a context that outlives it.
	uploadCtx := context.WithoutCancel(ctx)
	o.uploads.Add(1)
	go func() {
		defer o.uploads.Done()
		o.uploader.Upload(uploadCtx, chunk)
	}()

	o.mu.Lock()
	err = o.states.Advance(sess, index)
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("advance session: %w", err)
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context) {
	o.uploads.Wait()
	o.mu.Lock()
	o.state = StateStopped
	capture := o.capture
	o.capture = nil
	sess := o.sess
	o.mu.Unlock()
	if capture != nil {
		_ = capture.Close()
	}
	logutil.GetLogger(ctx).Info("recording stopped",
		zap.String("session_id", sess.ID),
		zap.Int("next_chunk_index", sess.NextChunkIndex))
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	logutil.GetLogger(ctx).Error("recording session aborted", zap.Error(err))
	o.uploads.Wait()
	o.mu.Lock()
	o.runErr = err
	o.state = StateStopped
	capture := o.capture
	o.capture = nil
	o.mu.Unlock()
	if capture != nil {
		_ = capture.Close()
	}
}
