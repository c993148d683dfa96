package usecase

import (
	"context"

	"LaneRisk/pkg/queue"
)

// Refresher is the slice of the model cache the job needs.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ModelRefreshJob reacts to "model updated" messages from the external
// recalibration service by refetching the active calibration model.
type ModelRefreshJob struct {
	refresher Refresher
}

func NewModelRefreshJob(r Refresher) *ModelRefreshJob {
	return &ModelRefreshJob{refresher: r}
}

func (j *ModelRefreshJob) Name() string { return "model-refresh" }

func (j *ModelRefreshJob) Type() string { return "calibration.model_updated" }

func (j *ModelRefreshJob) Handle(ctx context.Context, _ interface{}) error {
	return j.refresher.Refresh(ctx)
}

var _ queue.Job = (*ModelRefreshJob)(nil)
