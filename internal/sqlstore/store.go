package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tourdesk/internal/ids"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name       string
	Driver     string
	schema     string
	numbered   bool   // $1, $2 placeholders instead of ?
	lockSuffix string // appended to the SELECT inside update transactions
}

var (
	// SQLite is the local, file-backed dialect.
	SQLite = Dialect{Name: "sqlite", Driver: "sqlite3", schema: sqliteSchema}

	// Postgres is the dialect used for Supabase projects.
	Postgres = Dialect{Name: "postgres", Driver: "postgres", schema: postgresSchema, numbered: true, lockSuffix: " FOR UPDATE"}
)

// rebind converts "?" placeholders to the dialect's form.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Store provides table storage over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	ids     ids.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator for records inserted without an id.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// OpenSQLite creates or opens a SQLite database at path, creating parent
// directories as needed. Applies pragmas and the schema. Idempotent.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open(SQLite.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return open(ctx, db, SQLite, opts)
}

// OpenPostgres connects to a Postgres database (a Supabase project's
// connection string) and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(ctx, db, Postgres, opts)
}

func open(ctx context.Context, db *sql.DB, d Dialect, opts []Option) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	s := &Store{db: db, dialect: d, ids: ids.UUIDv7{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}
