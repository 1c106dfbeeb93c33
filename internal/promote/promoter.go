// Package promote turns stabilized session documents into derived post
// drafts, notifies the operator, and archives the source.
package promote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/notify"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
	"github.com/voxnote/voxnote/internal/pkg/naming"
)

// postPrompt asks for three post variants so the operator can pick one.
const postPrompt = `From the transcribed text below, draft social media posts.

Rules:
1. Remove filler words, repetition, and greetings entirely.
2. Extract the core message so a reader gets it at a glance.
3. Keep the tone approachable but knowledgeable.
4. Suggest 3-5 relevant hashtags.

Produce three patterns:
## Pattern 1: Summary bullets (coverage first, conclusion first)
## Pattern 2: Story/empathy (focus on insights and lessons)
## Pattern 3: Short impact (one sentence, under 140 characters)

No preamble. Start with the first pattern heading.`

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Promoter struct {
	text      filestore.Store
	docs      filestore.Store
	archive   filestore.Store
	generator Generator
	notifier  notify.Notifier
	stability time.Duration
	now       func() time.Time
}

func NewPromoter(text, docs, archive filestore.Store, generator Generator, notifier notify.Notifier, stability time.Duration) *Promoter {
	return &Promoter{
		text:      text,
		docs:      docs,
		archive:   archive,
		generator: generator,
		notifier:  notifier,
		stability: stability,
		now:       time.Now,
	}
}

// Process scans the active document collection and promotes every eligible
// session document. With force unset, documents modified within the
// stability window are skipped so sessions still receiving chunks are left
// alone. Any failing step leaves the source in place for the next run.
func (p *Promoter) Process(ctx context.Context, force bool) error {
	entries, err := p.text.List(ctx)
	if err != nil {
		return fmt.Errorf("scan document collection: %w", err)
	}
	logger := logutil.GetLogger(ctx)
	promoted := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !naming.Promotable(entry.Key) {
			continue
		}
		if !force && p.now().Sub(entry.ModTime) < p.stability {
			logger.Info("document still settling, skipped", zap.String("document", entry.Key))
			continue
		}
		done, err := p.promoteOne(ctx, entry.Key)
		if err != nil {
			logger.Error("promotion failed", zap.String("document", entry.Key), zap.Error(err))
			continue
		}
		if done {
			promoted++
		}
	}
	if promoted > 0 {
		logger.Info("promotion run finished", zap.Int("promoted", promoted))
	}
	return nil
}

func (p *Promoter) promoteOne(ctx context.Context, documentName string) (bool, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document", documentName))
	artifactName := naming.ArtifactName(documentName)

	// Artifact existence is the idempotency guard: already processed means
	// the source only needs to be moved out of the way.
	_, err := p.docs.Stat(ctx, artifactName)
	switch {
	case err == nil:
		logger.Info("artifact already exists, archiving source", zap.String("artifact", artifactName))
		if err := filestore.Move(ctx, p.text, p.archive, documentName); err != nil {
			return false, fmt.Errorf("archive processed document: %w", err)
		}
		return false, nil
	case !errors.Is(err, appErr.ErrNotFound):
		return false, fmt.Errorf("check artifact: %w", err)
	}

	content, err := filestore.ReadAll(ctx, p.text, documentName)
	if err != nil {
		return false, fmt.Errorf("read document: %w", err)
	}
	result, err := p.generator.Generate(ctx, postPrompt+"\n\n[TRANSCRIPT]\n"+string(content))
	if err != nil {
		return false, fmt.Errorf("generate artifact: %w", err)
	}
	if result == "" {
		return false, fmt.Errorf("generate artifact: %w", appErr.ErrEmptyResult)
	}

	if err := p.docs.Save(ctx, artifactName, bytes.NewReader([]byte(result)), int64(len(result))); err != nil {
		return false, fmt.Errorf("write artifact: %w", err)
	}
	logger.Info("artifact created", zap.String("artifact", artifactName))

	if p.notifier != nil {
		if err := p.notifier.NotifyArtifact(ctx, documentName, artifactName, result); err != nil {
			// The artifact exists, so the next run archives the source via
			// the idempotent branch above.
			return false, fmt.Errorf("notify: %w", err)
		}
	}
	if err := filestore.Move(ctx, p.text, p.archive, documentName); err != nil {
		return false, fmt.Errorf("archive document: %w", err)
	}
	return true, nil
}
