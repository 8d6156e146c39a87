package adapter

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/tourdesk/internal/sqlstore"
)

// SQL is the variant backed by a relational database: a local sqlite file
// or a Supabase project's Postgres.
type SQL struct {
	base
	db *sqlstore.Store
}

var _ Adapter = (*SQL)(nil)

// NewSQLite opens the sqlite variant at path.
func NewSQLite(ctx context.Context, path string, opts ...Option) (*SQL, error) {
	o := buildOptions(opts)
	db, err := sqlstore.OpenSQLite(ctx, path, sqlstore.WithIDGenerator(o.ids))
	if err != nil {
		return nil, asBackend("open sqlite", err)
	}
	o.logger.Debug("sqlite store opened", zap.String("path", path))
	return newSQL("sqlite", db, o), nil
}

// NewSupabase connects the supabase variant to the project's Postgres
// database.
func NewSupabase(ctx context.Context, dsn string, opts ...Option) (*SQL, error) {
	o := buildOptions(opts)
	db, err := sqlstore.OpenPostgres(ctx, dsn, sqlstore.WithIDGenerator(o.ids))
	if err != nil {
		return nil, asBackend("connect supabase", err)
	}
	o.logger.Debug("supabase database connected")
	return newSQL("supabase", db, o), nil
}

func newSQL(name string, db *sqlstore.Store, o *options) *SQL {
	return &SQL{base: o.base(name, db, db), db: db}
}

// Close releases the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}
