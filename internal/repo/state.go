package repo

import (
	"context"
	"time"
)

// UpRecord is the previous-cycle projection for one target: whether it was
// up, and since when that has been true.
type UpRecord struct {
	Target    string
	Up        bool
	ChangedAt time.Time
}

// StateStore exposes the projection used for transition detection. It is
// written as part of StatusStore.Commit.
type StateStore interface {
	// Get returns nil, nil if the target has never been in a committed cycle.
	Get(ctx context.Context, target string) (*UpRecord, error)
}
