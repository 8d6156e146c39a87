package adapter

import (
	"sync"

	"go.uber.org/zap"
)

// notifier fans changes out to per-table subscribers.
//
// Thread-safety: safe for concurrent use. Callbacks run on the goroutine
// that made the change, outside the registry lock.
type notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]func(Change)
	logger *zap.Logger
}

func newNotifier(logger *zap.Logger) *notifier {
	return &notifier{subs: make(map[string]map[uint64]func(Change)), logger: logger}
}

func (n *notifier) subscribe(table string, fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.subs[table] == nil {
		n.subs[table] = make(map[uint64]func(Change))
	}
	n.subs[table][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[table], id)
			if len(n.subs[table]) == 0 {
				delete(n.subs, table)
			}
		})
	}
}

func (n *notifier) count(table string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[table])
}

func (n *notifier) notify(c Change) {
	n.mu.Lock()
	fns := make([]func(Change), 0, len(n.subs[c.Table]))
	for _, fn := range n.subs[c.Table] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		n.deliver(fn, c)
	}
}

// deliver isolates the adapter from a panicking subscriber.
func (n *notifier) deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("subscriber panicked",
				zap.String("table", c.Table),
				zap.String("change", string(c.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	fn(Change{Table: c.Table, Type: c.Type, Record: c.Record.Clone()})
}
