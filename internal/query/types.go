package query

import (
	"sort"

	"github.com/roach88/tourdesk/internal/record"
)

// Clause is a single-field predicate.
type Clause interface {
	// Field is the record field the clause reads.
	Field() string

	// Match reports whether a present field value satisfies the clause.
	// Missing fields are handled by Query and never reach Match.
	Match(v record.Value) bool
}

// Eq matches when the field strictly equals Value.
type Eq struct {
	Name  string
	Value record.Value
}

// Field implements Clause.
func (c Eq) Field() string { return c.Name }

// Match implements Clause.
func (c Eq) Match(v record.Value) bool { return record.Equal(v, c.Value) }

// In matches when the field strictly equals any member of Values.
// An empty set matches nothing.
type In struct {
	Name   string
	Values []record.Value
}

// Field implements Clause.
func (c In) Field() string { return c.Name }

// Match implements Clause.
func (c In) Match(v record.Value) bool {
	for _, want := range c.Values {
		if record.Equal(v, want) {
			return true
		}
	}
	return false
}

// Invalid stands in for a clause that could not be parsed. It never matches.
type Invalid struct {
	Name   string
	Reason string
}

// Field implements Clause.
func (c Invalid) Field() string { return c.Name }

// Match implements Clause.
func (Invalid) Match(record.Value) bool { return false }

// Query is a conjunction of clauses. The zero Query selects everything.
type Query struct {
	Where []Clause
}

// All is the query that selects every record.
var All = Query{}

// Where builds a query from clauses.
func Where(clauses ...Clause) Query {
	return Query{Where: clauses}
}

// Equals is shorthand for an Eq clause built from a plain Go value.
// Unconvertible values yield an Invalid clause.
func Equals(field string, v any) Clause {
	val, err := record.FromAny(v)
	if err != nil {
		return Invalid{Name: field, Reason: err.Error()}
	}
	return Eq{Name: field, Value: val}
}

// OneOf is shorthand for an In clause built from plain Go values.
func OneOf(field string, vs ...any) Clause {
	vals := make([]record.Value, 0, len(vs))
	for _, v := range vs {
		val, err := record.FromAny(v)
		if err != nil {
			return Invalid{Name: field, Reason: err.Error()}
		}
		vals = append(vals, val)
	}
	return In{Name: field, Values: vals}
}

// IsEmpty reports whether the query selects everything.
func (q Query) IsEmpty() bool {
	return len(q.Where) == 0
}

// Matches reports whether r satisfies every clause.
func (q Query) Matches(r record.Record) bool {
	for _, c := range q.Where {
		if c == nil {
			return false
		}
		v, ok := r[c.Field()]
		if !ok || !c.Match(v) {
			return false
		}
	}
	return true
}

// Filter returns the records matching q, preserving input order.
// The returned slice shares records with the input.
func Filter(records []record.Record, q Query) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Fields returns the distinct field names referenced by q, sorted.
func (q Query) Fields() []string {
	seen := make(map[string]struct{}, len(q.Where))
	var names []string
	for _, c := range q.Where {
		if c == nil {
			continue
		}
		if _, ok := seen[c.Field()]; ok {
			continue
		}
		seen[c.Field()] = struct{}{}
		names = append(names, c.Field())
	}
	sort.Strings(names)
	return names
}
