package adapter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tourdesk/internal/config"
	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/ids"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/schema"
	"github.com/roach88/tourdesk/internal/seed"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(ids.NewSequence("gen")),
	}, extra...)
}

func newMock(t *testing.T, extra ...Option) *Mock {
	t.Helper()
	m, err := NewMock(context.Background(), 0, testOptions(extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// variants returns one instance of each locally runnable variant so the
// contract tests run against all of them.
func variants(t *testing.T, extra ...Option) map[string]Adapter {
	t.Helper()
	sqlite, err := NewSQLite(context.Background(), t.TempDir()+"/tourdesk.db", testOptions(extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Adapter{
		"mock":   newMock(t, extra...),
		"sqlite": sqlite,
	}
}

func rec(m map[string]any) record.Record {
	return record.MustFromMap(m)
}

func idsOf(records []record.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		id, _ := r.ID()
		out = append(out, id)
	}
	return out
}

func TestContract_GeneratedIDCollisionRetries(t *testing.T) {
	open := map[string]func(g ids.Generator) Adapter{
		"mock": func(g ids.Generator) Adapter { return newMock(t, WithIDGenerator(g)) },
		"sqlite": func(g ids.Generator) Adapter {
			a, err := NewSQLite(context.Background(), t.TempDir()+"/tourdesk.db", testOptions(WithIDGenerator(g))...)
			require.NoError(t, err)
			t.Cleanup(func() { a.Close() })
			return a
		},
	}
	for name, newAdapter := range open {
		t.Run(name, func(t *testing.T) {
			a := newAdapter(ids.NewFixed("c-1", "c-1", "c-2"))
			ctx := context.Background()
			_, err := a.Insert(ctx, "clients", rec(map[string]any{"name": "first"}))
			require.NoError(t, err)

			stored, err := a.Insert(ctx, "clients", rec(map[string]any{"name": "second"}))

			require.NoError(t, err)
			assert.Equal(t, record.String("c-2"), stored["id"])
		})
	}
}

func TestGeneratedIDCollisionGivesUp(t *testing.T) {
	taken := make([]string, maxIDAttempts+1)
	for i := range taken {
		taken[i] = "c-1"
	}
	m := newMock(t, WithIDGenerator(ids.NewFixed(taken...)))
	ctx := context.Background()
	_, err := m.Insert(ctx, "clients", rec(map[string]any{"name": "first"}))
	require.NoError(t, err)

	_, err = m.Insert(ctx, "clients", rec(map[string]any{"name": "second"}))

	assert.True(t, dataerr.IsConflict(err))
}

func TestContract_DuplicateInsertRejected(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := a.Insert(ctx, "clients", rec(map[string]any{"id": 1, "name": "x"}))
			require.NoError(t, err)

			_, err = a.Insert(ctx, "clients", rec(map[string]any{"id": 1, "name": "y"}))

			assert.True(t, dataerr.IsConflict(err))
			all, err := a.Select(ctx, "clients", query.All)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, record.String("x"), all[0]["name"])
		})
	}
}

func TestContract_UpdateMissingIsNotFound(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := a.Update(ctx, "clients", "999", rec(map[string]any{"name": "z"}))

			assert.True(t, dataerr.IsNotFound(err))
			all, err := a.Select(ctx, "clients", query.All)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestContract_SelectWithSetMembership(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, status := range []string{"active", "pending", "vip"} {
				_, err := a.Insert(ctx, "bookings", rec(map[string]any{"status": status}))
				require.NoError(t, err)
			}

			q, err := query.ParseJSON([]byte(`{"where":{"status":{"in":["active","vip"]}}}`))
			require.NoError(t, err)
			got, err := a.Select(ctx, "bookings", q)
			require.NoError(t, err)

			assert.Equal(t, []string{"gen-1", "gen-3"}, idsOf(got))
		})
	}
}

func TestContract_DeleteMissingReturnsFalse(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := a.Insert(ctx, "fleet", rec(map[string]any{"id": "1", "plate": "AB-1"}))
			require.NoError(t, err)

			removed, err := a.Delete(ctx, "fleet", "5")

			require.NoError(t, err)
			assert.False(t, removed)
			all, err := a.Select(ctx, "fleet", query.All)
			require.NoError(t, err)
			assert.Equal(t, []string{"1"}, idsOf(all))
		})
	}
}

func TestContract_WritesVisibleToLaterSelects(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := a.Insert(ctx, "tours", rec(map[string]any{"id": "t1", "price": 10}))
			require.NoError(t, err)
			_, err = a.Update(ctx, "tours", "t1", rec(map[string]any{"price": 12}))
			require.NoError(t, err)
			_, err = a.Insert(ctx, "tours", rec(map[string]any{"id": "t2", "price": 30}))
			require.NoError(t, err)
			_, err = a.Delete(ctx, "tours", "t2")
			require.NoError(t, err)

			all, err := a.Select(ctx, "tours", query.All)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, record.Int(12), all[0]["price"])

			names, err := a.Tables(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"tours"}, names)
		})
	}
}

func TestContract_SubscribeDeliversChanges(t *testing.T) {
	for name, a := range variants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var got []Change
			unsubscribe := a.Subscribe("fleet", func(c Change) { got = append(got, c) })
			a.Subscribe("tours", func(Change) { t.Error("unrelated table notified") })

			_, err := a.Insert(ctx, "fleet", rec(map[string]any{"id": "v1", "plate": "AB-1"}))
			require.NoError(t, err)
			_, err = a.Update(ctx, "fleet", "v1", rec(map[string]any{"plate": "AB-2"}))
			require.NoError(t, err)
			_, err = a.Delete(ctx, "fleet", "v1")
			require.NoError(t, err)
			_, err = a.Delete(ctx, "fleet", "v1")
			require.NoError(t, err)

			require.Len(t, got, 3, "a delete that removed nothing is not a change")
			assert.Equal(t, []ChangeType{Created, Updated, Deleted}, []ChangeType{got[0].Type, got[1].Type, got[2].Type})
			assert.Equal(t, record.String("AB-2"), got[1].Record["plate"])

			unsubscribe()
			_, err = a.Insert(ctx, "fleet", rec(map[string]any{"id": "v2", "plate": "CD-1"}))
			require.NoError(t, err)
			assert.Len(t, got, 3)
		})
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	m := newMock(t)
	var first, second atomic.Int32
	unsubFirst := m.Subscribe("clients", func(Change) { first.Add(1) })
	m.Subscribe("clients", func(Change) { second.Add(1) })

	unsubFirst()
	unsubFirst()
	unsubFirst()

	assert.Equal(t, 1, m.changes.count("clients"), "other subscribers stay registered")
	_, err := m.Insert(context.Background(), "clients", rec(map[string]any{"name": "Ana"}))
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestPanickingSubscriberDoesNotBreakWrites(t *testing.T) {
	m := newMock(t)
	var delivered bool
	m.Subscribe("clients", func(Change) { panic("boom") })
	m.Subscribe("clients", func(Change) { delivered = true })

	_, err := m.Insert(context.Background(), "clients", rec(map[string]any{"name": "Ana"}))

	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestSubscriberCannotMutateStore(t *testing.T) {
	m := newMock(t)
	m.Subscribe("clients", func(c Change) { c.Record["name"] = record.String("hijacked") })

	_, err := m.Insert(context.Background(), "clients", rec(map[string]any{"id": "c1", "name": "Ana"}))
	require.NoError(t, err)

	got, ok := m.Store().Get("clients", "c1")
	require.True(t, ok)
	assert.Equal(t, record.String("Ana"), got["name"])
}

func TestSchemaValidation(t *testing.T) {
	for name, a := range variants(t, WithSchema(schema.Default())) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := a.Insert(ctx, "fleet", rec(map[string]any{"plate": "AB-1", "kind": "rocket", "capacity": 2, "status": "available"}))
			assert.Equal(t, dataerr.CodeInvalidRecord, dataerr.CodeOf(err))

			stored, err := a.Insert(ctx, "fleet", rec(map[string]any{"plate": "AB-1", "kind": "van", "capacity": 8, "status": "available"}))
			require.NoError(t, err)
			id, _ := stored.ID()

			_, err = a.Update(ctx, "fleet", id, rec(map[string]any{"capacity": 0}))
			assert.Equal(t, dataerr.CodeInvalidRecord, dataerr.CodeOf(err))

			all, err := a.Select(ctx, "fleet", query.All)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, record.Int(8), all[0]["capacity"])
		})
	}
}

func TestMockLatencyHonoursContext(t *testing.T) {
	m, err := NewMock(context.Background(), time.Hour, testOptions()...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = m.Select(ctx, "clients", query.All)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestMockLatencyDelaysOperations(t *testing.T) {
	m, err := NewMock(context.Background(), 20*time.Millisecond, testOptions()...)
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Insert(context.Background(), "clients", rec(map[string]any{"name": "Ana"}))

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMockSeeding(t *testing.T) {
	m := newMock(t, WithFixtures(seed.Default()), WithSchema(schema.Default()))
	ctx := context.Background()

	bookings, err := m.Select(ctx, "bookings", query.All)
	require.NoError(t, err)
	assert.Len(t, bookings, 5)

	s, err := m.SignIn(ctx, "admin@tourdesk.test", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", s.User.Role)
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, config.Config{Adapter: config.AdapterMock}, testOptions()...)
	require.NoError(t, err)
	assert.Equal(t, "mock", a.Name())

	a, err = New(ctx, config.Config{Adapter: config.AdapterSQLite, DataDir: t.TempDir()}, testOptions()...)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", a.Name())
	require.NoError(t, a.Close())

	_, err = New(ctx, config.Config{Adapter: config.AdapterSupabase}, testOptions()...)
	assert.True(t, dataerr.IsConfig(err))
}

func TestFactoryRejectsUnknownAdapter(t *testing.T) {
	for _, name := range []string{"firebase", "", "MOCK"} {
		a, err := New(context.Background(), config.Config{Adapter: name})

		assert.Nil(t, a)
		require.Error(t, err)
		assert.True(t, dataerr.IsConfig(err), "name %q", name)
		assert.Contains(t, err.Error(), "unknown data adapter")
	}
}
