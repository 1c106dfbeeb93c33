package job

import (
	"context"

	"github.com/voxnote/voxnote/internal/promote"
)

type PromoteJob struct {
	promoter *promote.Promoter
}

func NewPromoteJob(promoter *promote.Promoter) *PromoteJob {
	return &PromoteJob{promoter: promoter}
}

func (j *PromoteJob) Name() string {
	return "document_promote"
}

func (j *PromoteJob) Run(ctx context.Context) error {
	return j.promoter.Process(ctx, false)
}
