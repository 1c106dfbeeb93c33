// Package aggregate appends chunk transcriptions to their session's growing
// document.
package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/filestore"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
	"github.com/voxnote/voxnote/internal/pkg/syncutil"
	"github.com/voxnote/voxnote/internal/sequence"
)

type Aggregator struct {
	allocator *sequence.Allocator
	text      filestore.Store
	locks     *syncutil.KeyedMutex
	now       func() time.Time
}

func NewAggregator(allocator *sequence.Allocator, text filestore.Store) *Aggregator {
	return &Aggregator{
		allocator: allocator,
		text:      text,
		locks:     syncutil.NewKeyedMutex(),
		now:       time.Now,
	}
}

// Append resolves the session's document name and appends one labeled
// transcript block, creating the document with its header on first write.
// The whole read-modify-write is serialized per session; blocks land in the
// order their transcriptions complete, not necessarily in chunk order.
func (a *Aggregator) Append(ctx context.Context, sessionID string, chunkIndex int, transcript string) (string, error) {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	name, err := a.allocator.Resolve(ctx, sessionID)
	if err != nil {
		return "", err
	}

	block := fmt.Sprintf("\n\n--- Chunk %02d (%s) ---\n%s",
		chunkIndex, a.now().Format("15:04:05"), transcript)

	var content []byte
	existing, err := filestore.ReadAll(ctx, a.text, name)
	switch {
	case err == nil:
		content = append(existing, block...)
	case errors.Is(err, appErr.ErrNotFound):
		content = append([]byte(a.header(sessionID, name)), block...)
		logutil.GetLogger(ctx).Info("session document created",
			zap.String("session_id", sessionID), zap.String("document", name))
	default:
		return "", fmt.Errorf("read document %s: %w", name, err)
	}

	if err := a.text.Save(ctx, name, bytes.NewReader(content), int64(len(content))); err != nil {
		return "", fmt.Errorf("write document %s: %w", name, err)
	}
	logutil.GetLogger(ctx).Info("transcript appended",
		zap.String("session_id", sessionID),
		zap.String("document", name),
		zap.Int("chunk_index", chunkIndex))
	return name, nil
}

// header is written exactly once, on document creation, and never rewritten.
func (a *Aggregator) header(sessionID, name string) string {
	return fmt.Sprintf("=== Session Transcript ===\nOriginal Session: %s\nFile Name: %s\nStarted: %s\n",
		sessionID, name, a.now().Format("2006-01-02 15:04:05"))
}
