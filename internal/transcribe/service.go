// Package transcribe turns sealed voice chunks into transcript blocks.
package transcribe

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/aggregate"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/pkg/naming"
)

// Verbatim transcription with filler words removed.
const transcribePrompt = "Transcribe the audio verbatim. Remove filler words (um, uh, er). Output only the transcription text."

const chunkMimeType = "audio/webm"

type Transcriber interface {
	Transcribe(ctx context.Context, mimeType string, audio []byte, prompt string) (string, error)
}

type Service struct {
	voice       filestore.Store
	aggregator  *aggregate.Aggregator
	transcriber Transcriber
}

func NewService(voice filestore.Store, aggregator *aggregate.Aggregator, transcriber Transcriber) *Service {
	return &Service{voice: voice, aggregator: aggregator, transcriber: transcriber}
}

// Sweep scans the voice collection for sealed chunks, transcribes each one,
// appends the text to its session document, and deletes the source chunk.
// A chunk whose transcription fails stays in the collection for the next
// sweep; one bad chunk never stops the rest.
func (s *Service) Sweep(ctx context.Context) error {
	entries, err := s.voice.List(ctx)
	if err != nil {
		return fmt.Errorf("scan voice collection: %w", err)
	}
	logger := logutil.GetLogger(ctx)
	processed := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !naming.ValidChunkFileName(entry.Key) {
			continue
		}
		if err := s.processChunk(ctx, entry.Key); err != nil {
			logger.Error("chunk transcription failed", zap.String("file", entry.Key), zap.Error(err))
			continue
		}
		processed++
	}
	if processed > 0 {
		logger.Info("transcription sweep finished", zap.Int("processed", processed))
	}
	return nil
}

func (s *Service) processChunk(ctx context.Context, fileName string) error {
	sessionID, index, err := naming.ParseChunkFileName(fileName)
	if err != nil {
		return err
	}
	audio, err := filestore.ReadAll(ctx, s.voice, fileName)
	if err != nil {
		return fmt.Errorf("read chunk: %w", err)
	}
	text, err := s.transcriber.Transcribe(ctx, chunkMimeType, audio, transcribePrompt)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	if _, err := s.aggregator.Append(ctx, sessionID, index, text); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	// The chunk is only deleted once its text is durably appended.
	if err := s.voice.Remove(ctx, fileName); err != nil {
		return fmt.Errorf("remove chunk: %w", err)
	}
	return nil
}
