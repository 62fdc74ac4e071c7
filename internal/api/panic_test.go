package api

import (
	"context"
	"time"

	"keyactivate/internal/activation"
	"keyactivate/internal/models"
)

// panickingStore simulates a driver bug inside a request.
type panickingStore struct{}

func (panickingStore) Insert(context.Context, *models.Registration) (activation.InsertOutcome, error) {
	panic("driver bug")
}

func (panickingStore) Touch(context.Context, string, string, time.Time) error { return nil }

func (panickingStore) Count(context.Context) (int64, error) { return 0, nil }
