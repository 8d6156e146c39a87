package adapter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/seed"
	"github.com/roach88/tourdesk/internal/sqlstore"
	"github.com/roach88/tourdesk/internal/store"
)

// Mock is the in-memory variant. Every operation waits for the configured
// latency before touching the store.
type Mock struct {
	base
	store *store.Store
}

var _ Adapter = (*Mock)(nil)

// memTables adapts store.Store to the context-aware tables contract and
// simulates the network round trip.
type memTables struct {
	store   *store.Store
	latency time.Duration
}

// wait blocks for the simulated latency or until ctx is done.
func (m memTables) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m memTables) Select(ctx context.Context, table string, q query.Query) ([]record.Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.store.Select(table, q), nil
}

func (m memTables) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.store.Insert(table, rec)
}

func (m memTables) Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.store.Update(table, id, patch)
}

func (m memTables) Delete(ctx context.Context, table, id string) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}
	return m.store.Delete(table, id), nil
}

func (m memTables) Tables(ctx context.Context) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.store.Tables(), nil
}

// NewMock builds the mock variant. Fixtures given through WithFixtures are
// loaded into the store and their users registered.
func NewMock(ctx context.Context, latency time.Duration, opts ...Option) (*Mock, error) {
	o := buildOptions(opts)
	st := store.New(store.WithIDGenerator(o.ids))
	accts := newMemAccounts()

	m := &Mock{
		base:  o.base("mock", memTables{store: st, latency: latency}, accts),
		store: st,
	}
	if o.fixtures != nil {
		if err := m.seed(ctx, o.fixtures, accts); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Mock) seed(ctx context.Context, f *seed.Fixtures, accts *memAccounts) error {
	recs, err := f.Records()
	if err != nil {
		return fmt.Errorf("seed %s: %w", f.Name, err)
	}
	if m.schema != nil {
		for table, rows := range recs {
			for _, r := range rows {
				if err := m.schema.Validate(table, r); err != nil {
					return fmt.Errorf("seed %s: %w", f.Name, err)
				}
			}
		}
	}
	if err := m.store.Load(recs); err != nil {
		return fmt.Errorf("seed %s: %w", f.Name, err)
	}

	for _, u := range f.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), m.auth.bcryptCost)
		if err != nil {
			return fmt.Errorf("seed %s: hash password: %w", f.Name, err)
		}
		err = accts.CreateUser(ctx, sqlstore.UserRow{
			ID:           m.ids.Generate(),
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         u.Role,
			Name:         u.Name,
			CreatedAt:    m.auth.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", f.Name, err)
		}
	}
	m.logger.Debug("mock store seeded")
	return nil
}

// Store exposes the backing store for resets and fixtures.
func (m *Mock) Store() *store.Store {
	return m.store
}

// Close is a no-op; the mock holds no external resources.
func (m *Mock) Close() error {
	return nil
}
