package activation

import (
	"context"
	"time"

	"keyactivate/internal/models"
)

// InsertOutcome tags the result of a successful Insert call.
type InsertOutcome uint8

const (
	// OutcomeCreated means the row was new.
	OutcomeCreated InsertOutcome = iota
	// OutcomeConflict means the unique constraint rejected the row: the key
	// is already registered.
	OutcomeConflict
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeConflict:
		return "existing"
	default:
		return "unknown"
	}
}

// Store persists registrations. Implementations must enforce key uniqueness
// atomically and be safe for concurrent use. A non-nil error from Insert is
// never a duplicate key; those are reported as OutcomeConflict.
type Store interface {
	Insert(ctx context.Context, reg *models.Registration) (InsertOutcome, error)
	Touch(ctx context.Context, key, addr string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
