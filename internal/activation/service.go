// Package activation records hardware keys and reports how many distinct
// devices have activated.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"keyactivate/internal/models"
)

const defaultTimeout = 10 * time.Second

// Result is what a successful activation reports back.
type Result struct {
	TotalUsers int64
	Created    bool
}

// Service performs activations against an injected Store.
type Service struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds the storage work of a single activation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service backed by store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate registers key, or refreshes its last-seen time when the key is
// already known, and returns the total number of registered devices.
//
// Duplicate detection is left entirely to the store's unique constraint so
// two concurrent first activations of the same key cannot both create a row.
func (s *Service) Activate(ctx context.Context, key, sourceAddr string) (Result, error) {
	if key == "" {
		return Result{}, ErrMissingKey
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	outcome, err := s.store.Insert(ctx, models.NewRegistration(key, sourceAddr, now))
	if err != nil {
		return Result{}, fmt.Errorf("%w: insert registration: %w", ErrStorageFailure, err)
	}

	switch outcome {
	case OutcomeCreated:
		slog.Info("new device registered", "hardware_key", key)
	case OutcomeConflict:
		slog.Info("device already registered, updating last_seen", "hardware_key", key)
		if err := s.store.Touch(ctx, key, sourceAddr, now); err != nil {
			return Result{}, fmt.Errorf("%w: update last_seen: %w", ErrStorageFailure, err)
		}
	default:
		return Result{}, fmt.Errorf("%w: unexpected insert outcome %s", ErrStorageFailure, outcome)
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: count registrations: %w", ErrStorageFailure, err)
	}
	slog.Debug("total unique users", "total", total)

	return Result{TotalUsers: total, Created: outcome == OutcomeCreated}, nil
}
