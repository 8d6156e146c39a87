// Package adapter defines the capability contract every data backend
// satisfies and the factory that selects one from configuration.
//
// Variants:
//   - mock: the in-memory store with simulated latency and seeded accounts
//   - sqlite: a local database file
//   - supabase: a Supabase project's Postgres database
//
// All variants report record-level conditions as *dataerr.Error values
// and wrap backend failures with dataerr.CodeBackend.
package adapter

import (
	"context"

	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/session"
)

// Adapter is a data backend.
type Adapter interface {
	// Name is the configuration name of the variant.
	Name() string

	SignIn(ctx context.Context, email, password string) (session.Session, error)
	SignUp(ctx context.Context, email, password string) (session.Session, error)
	SignOut(ctx context.Context) error

	// CurrentUser returns nil when nobody is signed in.
	CurrentUser(ctx context.Context) (*session.User, error)

	Select(ctx context.Context, table string, q query.Query) ([]record.Record, error)
	Insert(ctx context.Context, table string, rec record.Record) (record.Record, error)
	Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error)
	Delete(ctx context.Context, table, id string) (bool, error)
	Tables(ctx context.Context) ([]string, error)

	// Subscribe registers fn for changes made to table through this
	// adapter. The returned function deregisters it and is idempotent.
	Subscribe(table string, fn func(Change)) (unsubscribe func())

	Close() error
}

// ChangeType classifies a table change.
type ChangeType string

const (
	Created ChangeType = "created"
	Updated ChangeType = "updated"
	Deleted ChangeType = "deleted"
)

// Change describes one mutation. For deletes Record carries only the id.
type Change struct {
	Table  string
	Type   ChangeType
	Record record.Record
}
