package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/ids"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// maxIDAttempts bounds retries when a generated id collides with a
// caller-supplied one.
const maxIDAttempts = 8

// Store is an in-memory collection of tables.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	ids    ids.Generator
}

type table struct {
	rows  []record.Record
	index map[string]int // id -> position in rows
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator used for records inserted without an id.
// Default: ids.UUIDv7.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*table),
		ids:    ids.UUIDv7{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureTable returns the named table, creating it if needed.
// Caller must hold the write lock.
func (s *Store) ensureTable(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{index: make(map[string]int)}
		s.tables[name] = t
	}
	return t
}

// Select returns copies of the records in name matching q, in insertion
// order. An unknown table yields an empty slice.
func (s *Store) Select(name string, q query.Query) []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return []record.Record{}
	}
	out := make([]record.Record, 0, len(t.rows))
	for _, r := range t.rows {
		if q.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Get returns a copy of one record.
func (s *Store) Get(name, id string) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	pos, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.rows[pos].Clone(), true
}

// Insert appends rec to name and returns the stored copy.
//
// When rec has no id one is generated. A supplied id must be a non-empty
// string or an integer, and must not already exist in the table.
func (s *Store) Insert(name string, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.ensureTable(name)
	stored := rec.Clone()
	if stored == nil {
		stored = make(record.Record)
	}

	var id string
	if raw, present := stored[record.IDField]; present {
		var ok bool
		id, ok = record.IDString(raw)
		if !ok {
			return nil, dataerr.InvalidRecord(name, "id must be a non-empty string or an integer")
		}
		if _, exists := t.index[id]; exists {
			return nil, dataerr.Conflict(name, id)
		}
	} else {
		var err error
		id, err = s.freshID(name, t)
		if err != nil {
			return nil, err
		}
		stored[record.IDField] = record.String(id)
	}

	t.index[id] = len(t.rows)
	t.rows = append(t.rows, stored)
	return stored.Clone(), nil
}

func (s *Store) freshID(name string, t *table) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.ids.Generate()
		if id == "" {
			continue
		}
		if _, exists := t.index[id]; !exists {
			return id, nil
		}
	}
	return "", dataerr.Conflict(name, fmt.Sprintf("<generated after %d attempts>", maxIDAttempts))
}

// Update merges patch into the record identified by id and returns the
// result. Fields absent from patch are kept. The id itself cannot change.
func (s *Store) Update(name, id string, patch record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, dataerr.NotFound(name, id)
	}
	pos, ok := t.index[id]
	if !ok {
		return nil, dataerr.NotFound(name, id)
	}
	if raw, present := patch[record.IDField]; present {
		if pid, ok := record.IDString(raw); !ok || pid != id {
			return nil, dataerr.InvalidRecord(name, "id cannot be changed by update")
		}
	}

	merged := t.rows[pos].Merge(patch)
	// Keep the stored id value as originally supplied (string vs integer).
	merged[record.IDField] = t.rows[pos][record.IDField]
	t.rows[pos] = merged
	return merged.Clone(), nil
}

// Delete removes the record identified by id and reports whether one was
// removed.
func (s *Store) Delete(name, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return false
	}
	pos, ok := t.index[id]
	if !ok {
		return false
	}
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
	delete(t.index, id)
	for i := pos; i < len(t.rows); i++ {
		rid, _ := t.rows[i].ID()
		t.index[rid] = i
	}
	return true
}

// Tables returns the names of all tables, sorted.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of records in name.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Clear drops every table.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*table)
}

// Load replaces the contents of each named table with the given records.
// Every record must carry a valid, table-unique id. Nothing is changed if
// any table fails validation.
func (s *Store) Load(fixtures map[string][]record.Record) error {
	built := make(map[string]*table, len(fixtures))
	for name, rows := range fixtures {
		t := &table{index: make(map[string]int, len(rows)), rows: make([]record.Record, 0, len(rows))}
		for i, r := range rows {
			id, ok := r.ID()
			if !ok {
				return dataerr.InvalidRecord(name, fmt.Sprintf("fixture row %d has no valid id", i))
			}
			if _, dup := t.index[id]; dup {
				return dataerr.Conflict(name, id)
			}
			t.index[id] = len(t.rows)
			t.rows = append(t.rows, r.Clone())
		}
		built[name] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range built {
		s.tables[name] = t
	}
	return nil
}
