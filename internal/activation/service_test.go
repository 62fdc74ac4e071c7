package activation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyactivate/internal/models"
)

// countingStore wraps MemoryStore and records how often each method is hit.
type countingStore struct {
	*MemoryStore
	mu      sync.Mutex
	inserts int
	touches int
	counts  int
}

func (c *countingStore) Insert(ctx context.Context, reg *models.Registration) (InsertOutcome, error) {
	c.mu.Lock()
	c.inserts++
	c.mu.Unlock()
	return c.MemoryStore.Insert(ctx, reg)
}

func (c *countingStore) Touch(ctx context.Context, key, addr string, at time.Time) error {
	c.mu.Lock()
	c.touches++
	c.mu.Unlock()
	return c.MemoryStore.Touch(ctx, key, addr, at)
}

func (c *countingStore) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	c.counts++
	c.mu.Unlock()
	return c.MemoryStore.Count(ctx)
}

// failingStore fails a single chosen operation.
type failingStore struct {
	*MemoryStore
	failOn string
	err    error
}

func (f *failingStore) Insert(ctx context.Context, reg *models.Registration) (InsertOutcome, error) {
	if f.failOn == "insert" {
		return 0, f.err
	}
	return f.MemoryStore.Insert(ctx, reg)
}

func (f *failingStore) Touch(ctx context.Context, key, addr string, at time.Time) error {
	if f.failOn == "touch" {
		return f.err
	}
	return f.MemoryStore.Touch(ctx, key, addr, at)
}

func (f *failingStore) Count(ctx context.Context) (int64, error) {
	if f.failOn == "count" {
		return 0, f.err
	}
	return f.MemoryStore.Count(ctx)
}

// outcomeStore reports a fixed outcome for every insert.
type outcomeStore struct {
	*countingStore
	outcome InsertOutcome
}

func (o *outcomeStore) Insert(ctx context.Context, reg *models.Registration) (InsertOutcome, error) {
	if _, err := o.countingStore.Insert(ctx, reg); err != nil {
		return 0, err
	}
	return o.outcome, nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestActivate_Scenario(t *testing.T) {
	svc := New(NewMemoryStore())
	ctx := context.Background()

	res, err := svc.Activate(ctx, "ABC123", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalUsers)
	assert.True(t, res.Created)

	res, err = svc.Activate(ctx, "ABC123", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalUsers)
	assert.False(t, res.Created)

	res, err = svc.Activate(ctx, "XYZ999", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalUsers)

	_, err = svc.Activate(ctx, "", "10.0.0.1")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestActivate_MissingKeyDoesNotTouchStorage(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := New(store)

	_, err := svc.Activate(context.Background(), "", "1.2.3.4")

	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Zero(t, store.inserts)
	assert.Zero(t, store.touches)
	assert.Zero(t, store.counts)
}

func TestActivate_ReactivationOnlyUpdatesLastSeen(t *testing.T) {
	mem := NewMemoryStore()
	first := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	_, err := New(mem, WithClock(fixedClock(first))).Activate(context.Background(), "ABC123", "10.0.0.1")
	require.NoError(t, err)

	res, err := New(mem, WithClock(fixedClock(later))).Activate(context.Background(), "ABC123", "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(1), res.TotalUsers)

	row, ok := mem.Get("ABC123")
	require.True(t, ok)
	assert.Equal(t, uint(1), row.ID)
	assert.True(t, row.FirstSeen.Equal(first), "first_seen must not change")
	assert.True(t, row.LastSeen.Equal(later))
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "10.0.0.2", *row.IPAddress)
}

func TestActivate_ConflictTakesTouchPath(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := New(store)

	for i := 0; i < 3; i++ {
		_, err := svc.Activate(context.Background(), "K", "")
		require.NoError(t, err)
	}

	assert.Equal(t, 3, store.inserts)
	assert.Equal(t, 2, store.touches)
	assert.Equal(t, 3, store.counts)
}

func TestActivate_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("database is down")

	for _, op := range []string{"insert", "touch", "count"} {
		t.Run(op, func(t *testing.T) {
			mem := NewMemoryStore()
			_, err := mem.Insert(context.Background(), models.NewRegistration("K", "", time.Now()))
			require.NoError(t, err)

			svc := New(&failingStore{MemoryStore: mem, failOn: op, err: boom})
			_, err = svc.Activate(context.Background(), "K", "")

			assert.ErrorIs(t, err, ErrStorageFailure)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestActivate_UnknownOutcomeIsStorageFailure(t *testing.T) {
	st := &outcomeStore{countingStore: &countingStore{MemoryStore: NewMemoryStore()}, outcome: InsertOutcome(9)}
	svc := New(st)

	res, err := svc.Activate(context.Background(), "ABC123", "")
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.Contains(t, err.Error(), "unknown")
	assert.Equal(t, Result{}, res)
	assert.Zero(t, st.touches)
	assert.Zero(t, st.counts)
}

func TestActivate_DeadlineSurfacesAsStorageFailure(t *testing.T) {
	svc := New(NewMemoryStore(), WithTimeout(time.Nanosecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Activate(ctx, "K", "")

	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActivate_ConcurrentFirstActivationsCreateOneRow(t *testing.T) {
	mem := NewMemoryStore()
	svc := New(mem)
	const n = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Activate(context.Background(), "NEW-KEY", "")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, int64(1), res.TotalUsers)
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	total, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestActivate_CountNeverDecreases(t *testing.T) {
	svc := New(NewMemoryStore())
	keys := []string{"a", "b", "a", "c", "b", "d", "a"}

	var last int64
	for _, k := range keys {
		res, err := svc.Activate(context.Background(), k, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.TotalUsers, last)
		last = res.TotalUsers
	}
	assert.Equal(t, int64(4), last)
}

func TestInsertOutcome_String(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "existing", OutcomeConflict.String())
	assert.Equal(t, "unknown", InsertOutcome(9).String())
}
