package activation

import (
	"context"
	"sync"
	"time"

	"keyactivate/internal/models"
)

// MemoryStore is an in-process Store. Its mutex plays the part of the
// database's unique constraint.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[string]*models.Registration

	// Err, when set, is returned by every operation.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*models.Registration)}
}

func (m *MemoryStore) Insert(ctx context.Context, reg *models.Registration) (InsertOutcome, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rows[reg.HardwareKey]; exists {
		return OutcomeConflict, nil
	}
	m.nextID++
	row := *reg
	row.ID = m.nextID
	m.rows[reg.HardwareKey] = &row
	return OutcomeCreated, nil
}

func (m *MemoryStore) Touch(ctx context.Context, key, addr string, at time.Time) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[key]; ok {
		row.LastSeen = at
		if addr != "" {
			row.IPAddress = models.NullableString(addr)
		}
	}
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

// Get returns a copy of the row for key.
func (m *MemoryStore) Get(key string) (models.Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return models.Registration{}, false
	}
	return *row, true
}

func (m *MemoryStore) check(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	return ctx.Err()
}
