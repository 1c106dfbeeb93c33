package job

import (
	"context"
	"fmt"

	"github.com/voxnote/voxnote/internal/promote"
	"github.com/voxnote/voxnote/internal/transcribe"
)

// Report runs one immediate pipeline pass when a recorder requests a
// document now: transcribe everything pending, then promote ignoring the
// stability window.
type Report struct {
	transcriber *transcribe.Service
	promoter    *promote.Promoter
}

func NewReport(transcriber *transcribe.Service, promoter *promote.Promoter) *Report {
	return &Report{transcriber: transcriber, promoter: promoter}
}

func (r *Report) RunReport(ctx context.Context) error {
	if err := r.transcriber.Sweep(ctx); err != nil {
		return fmt.Errorf("transcribe sweep: %w", err)
	}
	if err := r.promoter.Process(ctx, true); err != nil {
		return fmt.Errorf("forced promotion: %w", err)
	}
	return nil
}
