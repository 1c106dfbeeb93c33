package recorder

import (
	"context"
	"fmt"

	"github.com/voxnote/voxnote/internal/model"
)

// Sealer converts buffered capture data into immutable chunks. Sealing a
// non-final chunk restarts capture immediately so the audible gap stays
// minimal; a restart failure ends the session.
type Sealer struct {
	capture  Capture
	mimeType string
}

func NewSealer(capture Capture, mimeType string) *Sealer {
	return &Sealer{capture: capture, mimeType: mimeType}
}

func (s *Sealer) Seal(ctx context.Context, sessionID string, index int, final bool) (*model.Chunk, error) {
	data, err := s.capture.Stop()
	if err != nil {
		return nil, fmt.Errorf("drain capture: %w", err)
	}
	if !final {
		if err := s.capture.Start(ctx); err != nil {
			return nil, fmt.Errorf("restart capture: %w", err)
		}
	}
	return &model.Chunk{
		SessionID: sessionID,
		Index:     index,
		Bytes:     data,
		MimeType:  s.mimeType,
	}, nil
}
