// Package store provides the in-memory table container that backs the mock
// adapter.
//
// A Store holds named tables. Each table is an ordered sequence of records
// with an index from id to position:
//   - Iteration order is insertion order; updates never move a record.
//   - Ids are unique per table. Insert rejects a duplicate id with a
//     CONFLICT error instead of overwriting or duplicating.
//   - Records are deep-copied on the way in and on the way out, so callers
//     can never alias stored state.
//
// # Auto-vivification
//
// Tables are created on the first write to an unseen name (ensureTable).
// Reads of an unknown table return an empty result and do not create it.
// This is deliberate: dashboards address tables by name and the mock must
// behave like a schemaless backend.
//
// All methods are safe for concurrent use. There are no cross-table
// transactions.
package store
