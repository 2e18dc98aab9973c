package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"scalerrs-portal-api/internal/database"
	"scalerrs-portal-api/internal/records"

	"github.com/stretchr/testify/require"
)

// Store is a records.Store over an in-memory sqlite database that counts calls
// and can be told to fail.
type Store struct {
	db *database.Store

	Selects atomic.Int64
	Finds   atomic.Int64
	Creates atomic.Int64
	Updates atomic.Int64

	mu         sync.Mutex
	selectErr  error
	writeErr   error
	configured bool
}

// NewStore creates a seeded in-memory store, closed when the test ends.
func NewStore(t testing.TB, seed map[string][]records.Record) *Store {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for table, recs := range seed {
		require.NoError(t, db.Seed(context.Background(), table, recs))
	}
	return &Store{db: db, configured: true}
}

// Configured mirrors the hosted client's credential check.
func (s *Store) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

// SetConfigured toggles the credential check.
func (s *Store) SetConfigured(v bool) {
	s.mu.Lock()
	s.configured = v
	s.mu.Unlock()
}

// FailSelects makes every Select return err; nil restores normal behaviour.
func (s *Store) FailSelects(err error) {
	s.mu.Lock()
	s.selectErr = err
	s.mu.Unlock()
}

// FailWrites makes every Create and Update return err.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *Store) failures() (sel, write error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectErr, s.writeErr
}

func (s *Store) Select(ctx context.Context, q records.SelectQuery) (records.Page, error) {
	s.Selects.Add(1)
	if err, _ := s.failures(); err != nil {
		return records.Page{}, err
	}
	return s.db.Select(ctx, q)
}

func (s *Store) Find(ctx context.Context, table, id string) (records.Record, error) {
	s.Finds.Add(1)
	if err, _ := s.failures(); err != nil {
		return records.Record{}, err
	}
	return s.db.Find(ctx, table, id)
}

func (s *Store) Create(ctx context.Context, table string, fields map[string]any) (records.Record, error) {
	s.Creates.Add(1)
	if _, err := s.failures(); err != nil {
		return records.Record{}, err
	}
	return s.db.Create(ctx, table, fields)
}

func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) (records.Record, error) {
	s.Updates.Add(1)
	if _, err := s.failures(); err != nil {
		return records.Record{}, err
	}
	return s.db.Update(ctx, table, id, fields)
}

// Calls is the total number of store calls made.
func (s *Store) Calls() int64 {
	return s.Selects.Load() + s.Finds.Load() + s.Creates.Load() + s.Updates.Load()
}

var _ records.Store = (*Store)(nil)
