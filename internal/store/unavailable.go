package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyactivate/internal/activation"
	"keyactivate/internal/models"
)

// ErrUnavailable is returned by every operation of an Unavailable store.
var ErrUnavailable = errors.New("storage unavailable")

// Unavailable stands in for the database when it could not be opened at
// startup, so the server still comes up and answers every activation with a
// server error instead of exiting.
type Unavailable struct {
	Cause error
}

var _ activation.Store = Unavailable{}

func NewUnavailable(cause error) Unavailable {
	return Unavailable{Cause: cause}
}

func (u Unavailable) err() error {
	if u.Cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, u.Cause)
}

func (u Unavailable) Insert(context.Context, *models.Registration) (activation.InsertOutcome, error) {
	return 0, u.err()
}

func (u Unavailable) Touch(context.Context, string, string, time.Time) error { return u.err() }

func (u Unavailable) Count(context.Context) (int64, error) { return 0, u.err() }

func (u Unavailable) Ping(context.Context) error { return u.err() }

func (u Unavailable) Close() error { return nil }
