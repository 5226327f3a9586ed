package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/servicecheck/internal/domain"
)

var ErrNotFound = errors.New("target not found")

// TargetState is the current-status row for one target. Last is nil until the
// target has been part of a committed cycle.
type TargetState struct {
	Target   domain.Target       `json:"target"`
	Selected bool                `json:"selected"`
	Last     *domain.CheckResult `json:"last,omitempty"`
}

func (s TargetState) Status() domain.Status {
	if s.Last == nil {
		return ""
	}
	return s.Last.Status
}

func (s TargetState) Latency() time.Duration {
	if s.Last == nil {
		return domain.Unmeasured
	}
	return s.Last.Probe.Latency
}

// StatusStore is the lock-guarded "current status per target" table. Readers
// always see the state after the last fully committed cycle.
type StatusStore interface {
	// Load replaces the target set wholesale, e.g. at startup or on registry reload.
	Load(ctx context.Context, targets []domain.Target, selected bool) error
	List(ctx context.Context) ([]TargetState, error)
	// Get returns ErrNotFound for an unknown name.
	Get(ctx context.Context, name string) (*TargetState, error)
	SetSelected(ctx context.Context, name string, selected bool) error
	// SetAreaSelected toggles every target of an area and returns how many
	// there were; ErrNotFound when the area has none.
	SetAreaSelected(ctx context.Context, area string, selected bool) (int, error)
	Selected(ctx context.Context) ([]domain.Target, error)
	// Commit publishes a finished cycle's results in one write.
	Commit(ctx context.Context, c *domain.Cycle) error
	LatestCycle(ctx context.Context) (*domain.Cycle, error)
}
