package testutil

import (
	"context"
	"sync"

	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/store"
)

// Source is a scriptable record source for binding and metrics tests.
// It serves reads and writes from an in-memory store and lets a test
// hold individual calls open or make them fail.
//
// Thread-safety: safe for concurrent use.
type Source struct {
	Store *store.Store

	mu      sync.Mutex
	calls   map[string]int
	holds   []chan struct{}
	failing map[string]error
}

// NewSource returns a Source over an empty store.
func NewSource() *Source {
	return &Source{
		Store:   store.New(),
		calls:   make(map[string]int),
		failing: make(map[string]error),
	}
}

// Hold makes the next call of any operation block until release is
// called. Holds queue up: each one captures exactly one call.
func (s *Source) Hold() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds = append(s.holds, ch)
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Fail makes every later call of op ("select", "insert", "update",
// "delete") return err. A nil err clears it.
func (s *Source) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failing, op)
		return
	}
	s.failing[op] = err
}

// Calls returns how many times op has been called.
func (s *Source) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call, applies any pending hold and returns the
// scripted failure for op.
func (s *Source) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	var hold chan struct{}
	if len(s.holds) > 0 {
		hold, s.holds = s.holds[0], s.holds[1:]
	}
	failure := s.failing[op]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failure
}

func (s *Source) Select(ctx context.Context, table string, q query.Query) ([]record.Record, error) {
	if err := s.enter(ctx, "select"); err != nil {
		return nil, err
	}
	return s.Store.Select(table, q), nil
}

func (s *Source) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	if err := s.enter(ctx, "insert"); err != nil {
		return nil, err
	}
	return s.Store.Insert(table, rec)
}

func (s *Source) Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error) {
	if err := s.enter(ctx, "update"); err != nil {
		return nil, err
	}
	return s.Store.Update(table, id, patch)
}

func (s *Source) Delete(ctx context.Context, table, id string) (bool, error) {
	if err := s.enter(ctx, "delete"); err != nil {
		return false, err
	}
	return s.Store.Delete(table, id), nil
}
