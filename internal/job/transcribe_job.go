// Package job adapts the pipeline services to the scheduler.
package job

import (
	"context"

	"github.com/voxnote/voxnote/internal/transcribe"
)

type TranscribeJob struct {
	svc *transcribe.Service
}

func NewTranscribeJob(svc *transcribe.Service) *TranscribeJob {
	return &TranscribeJob{svc: svc}
}

func (j *TranscribeJob) Name() string {
	return "transcribe_sweep"
}

func (j *TranscribeJob) Run(ctx context.Context) error {
	return j.svc.Sweep(ctx)
}
