// Package throttle spaces out collaborator calls. Both collaborators are
// rate-limited per account, so the pipeline pauses after every section and,
// for longer, after every model.
package throttle

import (
	"context"
	"time"
)

type Scheduler struct {
	InterSection time.Duration
	InterModel   time.Duration
}

// None never waits. Tests use it.
var None = Scheduler{}

func New(interSection, interModel time.Duration) Scheduler {
	return Scheduler{InterSection: interSection, InterModel: interModel}
}

func (s Scheduler) AfterSection(ctx context.Context) error {
	return wait(ctx, s.InterSection)
}

func (s Scheduler) AfterModel(ctx context.Context) error {
	return wait(ctx, s.InterModel)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
