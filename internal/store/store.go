// Package store keeps device registrations in a relational database through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"keyactivate/internal/activation"
	"keyactivate/internal/models"

	"gorm.io/gorm"
)

// ErrNotBootstrapped is reported by Ping until Bootstrap has succeeded.
var ErrNotBootstrapped = errors.New("registration table not bootstrapped")

// Store is the gorm-backed activation.Store.
type Store struct {
	DB *gorm.DB

	bootstrapped atomic.Bool
}

var _ activation.Store = (*Store)(nil)

// New wraps an already opened gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Bootstrap creates the users table and its unique index when missing.
// Safe to run on every start.
func (s *Store) Bootstrap(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).AutoMigrate(&models.Registration{}); err != nil {
		return fmt.Errorf("migrate registrations: %w", err)
	}
	s.bootstrapped.Store(true)
	return nil
}

// Insert creates reg. A unique-constraint rejection is reported as
// activation.OutcomeConflict, not as an error.
func (s *Store) Insert(ctx context.Context, reg *models.Registration) (activation.InsertOutcome, error) {
	err := s.DB.WithContext(ctx).Create(reg).Error
	switch {
	case err == nil:
		return activation.OutcomeCreated, nil
	case IsUniqueViolation(err):
		return activation.OutcomeConflict, nil
	default:
		return 0, err
	}
}

// Touch refreshes last_seen for key, and ip_address when addr is known.
func (s *Store) Touch(ctx context.Context, key, addr string, at time.Time) error {
	updates := map[string]interface{}{"last_seen": at}
	if addr != "" {
		updates["ip_address"] = addr
	}
	return s.DB.WithContext(ctx).
		Model(&models.Registration{}).
		Where("hardware_key = ?", key).
		Updates(updates).Error
}

// Count returns the number of registered devices.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Registration{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Get loads the registration for key.
func (s *Store) Get(ctx context.Context, key string) (*models.Registration, error) {
	var reg models.Registration
	if err := s.DB.WithContext(ctx).Where("hardware_key = ?", key).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// Ping reports whether the database is reachable and the schema is in place.
func (s *Store) Ping(ctx context.Context) error {
	if !s.bootstrapped.Load() {
		return ErrNotBootstrapped
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
