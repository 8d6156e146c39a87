// Package ids generates record identifiers.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces identifiers for records inserted without one.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-sortable UUIDv7 identifiers, so generated ids sort
// roughly by creation time.
//
// Thread-safety: UUIDv7 is stateless and safe for concurrent use.
type UUIDv7 struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if the random source fails, which uuid treats as unrecoverable.
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns "<prefix>-1", "<prefix>-2", ... and is used where
// deterministic ids matter (tests, golden output).
//
// Thread-safety: safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a Sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (s *Sequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Fixed returns predetermined ids in order.
type Fixed struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixed creates a generator that returns ids in order.
func NewFixed(ids ...string) *Fixed {
	return &Fixed{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics when exhausted, to catch tests that insert more records than
// they planned for.
func (f *Fixed) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.ids) {
		panic("ids.Fixed: all ids exhausted")
	}
	id := f.ids[f.idx]
	f.idx++
	return id
}
