package scheduler

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/repo"
)

// Detector turns a cycle's results into up-edge events by comparing them with
// the projection of the previous committed cycle.
type Detector struct {
	state repo.StateStore
}

func NewDetector(state repo.StateStore) *Detector {
	return &Detector{state: state}
}

// Diff emits one event per result that is up now and was not up, or was never
// seen, in the previous cycle. Going down, staying up and staying down emit
// nothing. A failed lookup counts as "never seen".
func (d *Detector) Diff(ctx context.Context, cycleID string, results []domain.CheckResult) ([]domain.TransitionEvent, error) {
	var events []domain.TransitionEvent
	var errs error
	for _, r := range results {
		if !r.IsUp() {
			continue
		}
		rec, err := d.state.Get(ctx, r.Target.Name)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		wasUp := rec != nil && rec.Up
		if wasUp {
			continue
		}
		events = append(events, domain.TransitionEvent{
			CycleID: cycleID,
			Area:    r.Target.Area,
			Target:  r.Target.Name,
			Status:  r.Status,
			At:      r.CheckedAt,
		})
	}
	return events, errs
}
