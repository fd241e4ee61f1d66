package domain

import (
	"context"
	"time"
)

// AlertStore persists dispatched alerts for the admin API and post-hoc
// analysis. Persistence is best effort: a store failure never blocks or
// fails a dispatch.
type AlertStore interface {
	Insert(ctx context.Context, alert AlertEvent) error
	ListRecent(ctx context.Context, limit int) ([]AlertEvent, error)
	// DeleteBefore prunes alerts older than the cutoff and returns the number
	// of rows removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
