package adapter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/ids"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/schema"
	"github.com/roach88/tourdesk/internal/session"
)

// tables is the storage a variant provides.
type tables interface {
	Select(ctx context.Context, table string, q query.Query) ([]record.Record, error)
	Insert(ctx context.Context, table string, rec record.Record) (record.Record, error)
	Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error)
	Delete(ctx context.Context, table, id string) (bool, error)
	Tables(ctx context.Context) ([]string, error)
}

// base implements Adapter over a variant's tables and accounts. Variants
// embed it and add their own lifecycle.
type base struct {
	name    string
	tables  tables
	auth    *authenticator
	schema  *schema.Registry
	ids     ids.Generator
	changes *notifier
	logger  *zap.Logger
}

func (b *base) Name() string { return b.name }

func (b *base) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	return b.auth.signIn(ctx, email, password)
}

func (b *base) SignUp(ctx context.Context, email, password string) (session.Session, error) {
	return b.auth.signUp(ctx, email, password)
}

func (b *base) SignOut(ctx context.Context) error {
	return b.auth.signOut(ctx)
}

func (b *base) CurrentUser(ctx context.Context) (*session.User, error) {
	return b.auth.currentUser(ctx)
}

func (b *base) Select(ctx context.Context, table string, q query.Query) ([]record.Record, error) {
	out, err := b.tables.Select(ctx, table, q)
	if err != nil {
		return nil, asBackend(fmt.Sprintf("select %s", table), err)
	}
	b.logger.Debug("select", zap.String("table", table), zap.Int("clauses", len(q.Where)), zap.Int("rows", len(out)))
	return out, nil
}

// maxIDAttempts bounds how often Insert generates a fresh id after a
// collision.
const maxIDAttempts = 8

func (b *base) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	rec = rec.Clone()
	if rec == nil {
		rec = make(record.Record)
	}
	// Assign the id up front so the complete record can be validated. A
	// generated id that is already taken is replaced and tried again.
	_, supplied := rec[record.IDField]
	var stored record.Record
	for attempt := 1; ; attempt++ {
		if !supplied {
			rec[record.IDField] = record.String(b.ids.Generate())
		}
		if b.schema != nil {
			if err := b.schema.Validate(table, rec); err != nil {
				return nil, err
			}
		}

		var err error
		stored, err = b.tables.Insert(ctx, table, rec)
		if err == nil {
			break
		}
		if supplied || !dataerr.IsConflict(err) || attempt == maxIDAttempts {
			return nil, asBackend(fmt.Sprintf("insert %s", table), err)
		}
		b.logger.Debug("generated id taken, retrying", zap.String("table", table), zap.Int("attempt", attempt))
	}
	id, _ := stored.ID()
	b.logger.Debug("insert", zap.String("table", table), zap.String("id", id))
	b.changes.notify(Change{Table: table, Type: Created, Record: stored})
	return stored, nil
}

func (b *base) Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error) {
	if b.schema != nil {
		if err := b.schema.ValidatePatch(table, patch); err != nil {
			return nil, err
		}
	}

	updated, err := b.tables.Update(ctx, table, id, patch)
	if err != nil {
		return nil, asBackend(fmt.Sprintf("update %s", table), err)
	}
	b.logger.Debug("update", zap.String("table", table), zap.String("id", id), zap.Strings("fields", patch.Fields()))
	b.changes.notify(Change{Table: table, Type: Updated, Record: updated})
	return updated, nil
}

func (b *base) Delete(ctx context.Context, table, id string) (bool, error) {
	removed, err := b.tables.Delete(ctx, table, id)
	if err != nil {
		return false, asBackend(fmt.Sprintf("delete %s", table), err)
	}
	b.logger.Debug("delete", zap.String("table", table), zap.String("id", id), zap.Bool("removed", removed))
	if removed {
		b.changes.notify(Change{Table: table, Type: Deleted, Record: record.Record{record.IDField: record.String(id)}})
	}
	return removed, nil
}

func (b *base) Tables(ctx context.Context) ([]string, error) {
	names, err := b.tables.Tables(ctx)
	if err != nil {
		return nil, asBackend("list tables", err)
	}
	return names, nil
}

func (b *base) Subscribe(table string, fn func(Change)) func() {
	return b.changes.subscribe(table, fn)
}

