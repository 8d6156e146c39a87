// Package sqlstore provides SQL-backed table storage for the sqlite and
// supabase adapters.
//
// Every logical table lives in one physical "records" table:
//
//	records(seq, table_name, id, data)   UNIQUE(table_name, id)
//
// seq is an auto-incrementing key assigned on insert and never rewritten,
// so ORDER BY seq is insertion order regardless of update history. data is
// the record as JSON with sorted keys.
//
// Where-clauses are evaluated in process with query.Query.Matches rather
// than compiled to SQL. SQLite's json_extract coerces booleans to 0/1,
// which would make equality semantics depend on the backend; evaluating in
// Go keeps every adapter on the same strict equality.
//
// # Dialects
//
// Queries are written with "?" placeholders and rebound per dialect:
//   - SQLite (github.com/mattn/go-sqlite3): WAL mode, busy_timeout=5000,
//     a single open connection to avoid SQLITE_BUSY.
//   - Postgres (github.com/lib/pq): $n placeholders, row locks on update.
package sqlstore
