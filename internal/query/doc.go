// Package query implements the where-clause predicate language used by
// every table read.
//
// A Query is a conjunction of clauses. Each clause names one field and
// decides whether that field's value matches:
//
//	{"status": "active"}                      → Eq{Name: "status", ...}
//	{"status": {"in": ["active", "vip"]}}     → In{Name: "status", ...}
//
// A record matches a query when every clause matches. A field missing on
// the record never matches. The empty query matches every record.
//
// # Totality
//
// Parse never fails. A clause whose shape is not understood (an unknown
// operator, an "in" whose argument is not a list, an unconvertible value)
// becomes an Invalid clause, which matches nothing. Reads therefore stay
// total over any input; Validate reports the Invalid clauses so callers
// can surface them.
//
// # Extension
//
// Clause is an open interface. New operators are added by registering a
// constructor on a Parser; the stores only ever call Query.Matches, so a
// new clause kind needs no change to any store.
package query
