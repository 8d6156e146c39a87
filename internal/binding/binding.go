// Package binding keeps a local, observable cache of one table in sync
// with a data backend.
//
// A Binding moves through Idle → Loading → Ready | Errored. Every
// operation raises a loading counter before calling the backend and
// lowers it in a deferred step, so Snapshot().Loading is false only when
// nothing is in flight. Loads are numbered: a result is applied only if
// no newer load was issued, and nothing is applied after Close. Writes
// confirmed while the newest load is in flight are applied again on top
// of its result.
package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/logging"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// State is the lifecycle state of a Binding.
type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Ready   State = "ready"
	Errored State = "errored"
)

var (
	// ErrClosed is returned by operations on a closed Binding.
	ErrClosed = errors.New("binding: closed")

	// ErrStale is returned by a Load whose result was discarded because a
	// newer load was issued.
	ErrStale = errors.New("binding: result superseded")
)

// Source is the part of an adapter a Binding uses.
type Source interface {
	Select(ctx context.Context, table string, q query.Query) ([]record.Record, error)
	Insert(ctx context.Context, table string, rec record.Record) (record.Record, error)
	Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error)
	Delete(ctx context.Context, table, id string) (bool, error)
}

// Snapshot is an immutable view of a Binding.
type Snapshot struct {
	Table   string
	State   State
	Records []record.Record
	Loading bool
	Err     string
}

// Binding is a reactive cache of one table.
//
// Thread-safety: safe for concurrent use. Listeners are called outside
// the internal lock, in the goroutine that caused the change.
type Binding struct {
	src    Source
	table  string
	logger *zap.Logger

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	records   []record.Record
	inflight  int
	err       string
	gen       uint64
	settled   uint64 // newest generation that has resolved
	replay    []func([]record.Record) []record.Record
	lastQuery query.Query
	closed    bool
	listeners map[int]func(Snapshot)
	nextLis   int
	poller    *cron.Cron

	autoLoad *query.Query
}

// Option configures a Binding.
type Option func(*Binding)

// WithAutoLoad starts a load of q when the Binding is created.
func WithAutoLoad(q query.Query) Option {
	return func(b *Binding) { b.autoLoad = &q }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binding) { b.logger = logging.OrNop(l) }
}

// New binds table on src. With WithAutoLoad the Binding starts in the
// Loading state and loads in the background; otherwise it starts Idle.
func New(src Source, table string, opts ...Option) *Binding {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Binding{
		src:       src,
		table:     table,
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		state:     Idle,
		records:   []record.Record{},
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("table", table))

	if b.autoLoad != nil {
		q := *b.autoLoad
		b.mu.Lock()
		gen := b.issueLocked(q)
		b.mu.Unlock()

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.runLoad(b.ctx, gen, q); err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrClosed) {
				b.logger.Debug("auto-load failed", zap.Error(err))
			}
		}()
	}
	return b
}

// Table returns the bound table name.
func (b *Binding) Table() string {
	return b.table
}

// Snapshot returns the current state.
func (b *Binding) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Binding) snapshotLocked() Snapshot {
	return Snapshot{
		Table:   b.table,
		State:   b.state,
		Records: record.CloneAll(b.records),
		Loading: b.inflight > 0,
		Err:     b.err,
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// The returned function deregisters it.
func (b *Binding) OnChange(fn func(Snapshot)) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextLis
	b.nextLis++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// publish sends the current snapshot to listeners. Must be called
// without b.mu held.
func (b *Binding) publish() {
	b.mu.Lock()
	snap := b.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// begin raises the loading counter. The returned function lowers it and
// must be deferred.
func (b *Binding) begin() (end func(), err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.inflight++
	b.state = Loading
	b.mu.Unlock()
	b.publish()

	return func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
		b.publish()
	}, nil
}

// issueLocked numbers a new load and raises the loading counter.
func (b *Binding) issueLocked(q query.Query) uint64 {
	b.gen++
	b.lastQuery = q
	b.replay = nil
	b.inflight++
	b.state = Loading
	return b.gen
}

// Load replaces the cache with the records matching q. On failure the
// cache is kept and the Binding moves to Errored.
func (b *Binding) Load(ctx context.Context, q query.Query) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	gen := b.issueLocked(q)
	b.mu.Unlock()
	b.publish()

	return b.runLoad(ctx, gen, q)
}

// Reload repeats the most recent load.
func (b *Binding) Reload(ctx context.Context) error {
	b.mu.Lock()
	q := b.lastQuery
	b.mu.Unlock()
	return b.Load(ctx, q)
}

func (b *Binding) runLoad(ctx context.Context, gen uint64, q query.Query) error {
	defer func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
		b.publish()
	}()

	recs, err := b.src.Select(ctx, b.table, q)

	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return ErrClosed
	case gen != b.gen:
		b.mu.Unlock()
		b.logger.Debug("discarding superseded load", zap.Uint64("generation", gen))
		return ErrStale
	}
	b.settled = gen
	replay := b.replay
	b.replay = nil
	if err != nil {
		b.state = Errored
		b.err = describe(err)
		b.mu.Unlock()
		b.logger.Warn("load failed", zap.Error(err))
		return fmt.Errorf("load %s: %w", b.table, err)
	}
	if recs == nil {
		recs = []record.Record{}
	}
	for _, apply := range replay {
		recs = apply(recs)
	}
	b.records = recs
	b.state = Ready
	b.err = ""
	b.mu.Unlock()
	b.logger.Debug("loaded", zap.Int("rows", len(recs)))
	return nil
}

// Create inserts rec and appends the stored record to the cache once the
// backend confirms it.
func (b *Binding) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	end, err := b.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	stored, err := b.src.Insert(ctx, b.table, rec)
	if err != nil {
		return nil, b.fail("create", err)
	}
	id, _ := stored.ID()
	b.confirm(func(records []record.Record) []record.Record {
		if i := indexOf(records, id); i >= 0 {
			records[i] = stored.Clone()
			return records
		}
		return append(records, stored.Clone())
	})
	return stored, nil
}

// Update patches the record id and replaces it in the cache.
func (b *Binding) Update(ctx context.Context, id string, patch record.Record) (record.Record, error) {
	end, err := b.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	updated, err := b.src.Update(ctx, b.table, id, patch)
	if err != nil {
		return nil, b.fail("update", err)
	}
	b.confirm(func(records []record.Record) []record.Record {
		if i := indexOf(records, id); i >= 0 {
			records[i] = updated.Clone()
		}
		return records
	})
	return updated, nil
}

// Remove deletes the record id. A backend reporting nothing removed is a
// NOT_FOUND failure and leaves the cache unchanged.
func (b *Binding) Remove(ctx context.Context, id string) error {
	end, err := b.begin()
	if err != nil {
		return err
	}
	defer end()

	removed, err := b.src.Delete(ctx, b.table, id)
	if err != nil {
		return b.fail("remove", err)
	}
	if !removed {
		return b.fail("remove", dataerr.NotFound(b.table, id))
	}
	b.confirm(func(records []record.Record) []record.Record {
		kept := records[:0:0]
		for _, r := range records {
			if rid, ok := r.ID(); ok && rid == id {
				continue
			}
			kept = append(kept, r)
		}
		return kept
	})
	return nil
}

// confirm applies a confirmed write to the cache. apply must be
// idempotent: while the newest load is unresolved it is kept and run
// again on that load's result, which may or may not include the write.
func (b *Binding) confirm(apply func([]record.Record) []record.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.records = apply(b.records)
	if b.settled != b.gen {
		b.replay = append(b.replay, apply)
	}
	b.state = Ready
	b.err = ""
}

func indexOf(records []record.Record, id string) int {
	for i, r := range records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

func (b *Binding) fail(op string, err error) error {
	b.mu.Lock()
	if !b.closed {
		b.state = Errored
		b.err = describe(err)
	}
	b.mu.Unlock()
	b.logger.Warn(op+" failed", zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, b.table, err)
}

// Close stops polling and detaches the Binding: in-flight operations are
// cancelled and their late results ignored. Close is idempotent. It waits
// for background work, so it must not be called from a listener.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	poller := b.poller
	b.poller = nil
	b.mu.Unlock()

	b.cancel()
	if poller != nil {
		<-poller.Stop().Done()
	}
	b.wg.Wait()
}

func describe(err error) string {
	var de *dataerr.Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
