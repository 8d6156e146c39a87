package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// Select returns the records of table matching q in insertion order.
// An unknown table yields an empty slice.
func (s *Store) Select(ctx context.Context, table string, q query.Query) ([]record.Record, error) {
	rows, err := s.queryRows(ctx, `
		SELECT data FROM records
		WHERE table_name = ?
		ORDER BY seq ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("select %s: scan: %w", table, err)
		}
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: iterate: %w", table, err)
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, table, id string) (record.Record, bool, error) {
	var raw string
	err := s.queryRow(ctx, `SELECT data FROM records WHERE table_name = ? AND id = ?`, table, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	r, err := decodeRecord(raw)
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return r, true, nil
}

// Insert stores rec, generating an id when absent. A duplicate id is
// rejected with a CONFLICT error; callers that generated the id choose
// whether to retry.
func (s *Store) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	stored := rec.Clone()
	if stored == nil {
		stored = make(record.Record)
	}
	if _, present := stored[record.IDField]; !present {
		stored[record.IDField] = record.String(s.ids.Generate())
	}

	id, ok := record.IDString(stored[record.IDField])
	if !ok {
		return nil, dataerr.InvalidRecord(table, "id must be a non-empty string or an integer")
	}
	inserted, err := s.insertRow(ctx, table, id, stored)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, dataerr.Conflict(table, id)
	}
	return stored, nil
}

// insertRow reports false when (table, id) already exists.
func (s *Store) insertRow(ctx context.Context, table, id string, r record.Record) (bool, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("insert %s: marshal: %w", table, err)
	}
	res, err := s.exec(ctx, `
		INSERT INTO records (table_name, id, data)
		VALUES (?, ?, ?)
		ON CONFLICT (table_name, id) DO NOTHING
	`, table, id, string(data))
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: rows affected: %w", table, err)
	}
	return n > 0, nil
}

// Update merges patch into the record identified by id inside a
// transaction. The id cannot change.
func (s *Store) Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error) {
	if raw, present := patch[record.IDField]; present {
		if pid, ok := record.IDString(raw); !ok || pid != id {
			return nil, dataerr.InvalidRecord(table, "id cannot be changed by update")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update %s: begin tx: %w", table, err)
	}
	defer tx.Rollback() // No-op if committed

	var raw string
	err = tx.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT data FROM records WHERE table_name = ? AND id = ?`+s.dialect.lockSuffix),
		table, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dataerr.NotFound(table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: read: %w", table, err)
	}
	current, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}

	merged := current.Merge(patch)
	merged[record.IDField] = current[record.IDField]
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("update %s: marshal: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx,
		s.dialect.rebind(`UPDATE records SET data = ? WHERE table_name = ? AND id = ?`),
		string(data), table, id,
	); err != nil {
		return nil, fmt.Errorf("update %s: write: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %s: commit: %w", table, err)
	}
	return merged, nil
}

// Delete removes the record and reports whether one existed.
func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: rows affected: %w", table, err)
	}
	return n > 0, nil
}

// Tables returns the names of tables holding at least one record, sorted.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.queryRows(ctx, `SELECT DISTINCT table_name FROM records ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func decodeRecord(raw string) (record.Record, error) {
	var r record.Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
