package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/tourdesk/internal/record"
)

// OperatorFunc builds a clause for {field: {op: arg}}. Implementations
// return Invalid rather than failing.
type OperatorFunc func(field string, arg any) Clause

// Parser turns the map form of a where-clause into a Query.
type Parser struct {
	ops map[string]OperatorFunc
}

// NewParser returns a parser that understands equality and "in".
func NewParser() *Parser {
	p := &Parser{ops: make(map[string]OperatorFunc)}
	p.Register("in", parseIn)
	return p
}

// Register adds or replaces an operator. It is not safe to call
// concurrently with Parse.
func (p *Parser) Register(name string, fn OperatorFunc) {
	p.ops[name] = fn
}

var defaultParser = NewParser()

// Parse converts a where map using the built-in operators.
func Parse(where map[string]any) Query {
	return defaultParser.Parse(where)
}

// ParseJSON decodes a full query document ({"where": {...}}). Only JSON
// syntax errors are reported; malformed clauses become Invalid.
func ParseJSON(data []byte) (Query, error) {
	return defaultParser.ParseJSON(data)
}

// ParseWhereJSON decodes the inner where object ({"status": "active"}).
func ParseWhereJSON(data []byte) (Query, error) {
	return defaultParser.ParseWhereJSON(data)
}

// Parse converts a where map. Clauses are ordered by field name.
func (p *Parser) Parse(where map[string]any) Query {
	if len(where) == 0 {
		return All
	}
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := make([]Clause, 0, len(fields))
	for _, f := range fields {
		clauses = append(clauses, p.parseClause(f, where[f]))
	}
	return Query{Where: clauses}
}

// ParseJSON decodes {"where": {...}}. A document without "where" selects
// everything; a "where" that is not an object yields a query matching nothing.
func (p *Parser) ParseJSON(data []byte) (Query, error) {
	raw, err := decode(data)
	if err != nil {
		return Query{}, err
	}
	if raw == nil {
		return All, nil
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return Query{}, fmt.Errorf("query must be a JSON object, got %T", raw)
	}
	w, ok := doc["where"]
	if !ok || w == nil {
		return All, nil
	}
	where, ok := w.(map[string]any)
	if !ok {
		return Query{Where: []Clause{Invalid{Reason: "where must be an object"}}}, nil
	}
	return p.Parse(where), nil
}

// ParseWhereJSON decodes a bare where object.
func (p *Parser) ParseWhereJSON(data []byte) (Query, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return All, nil
	}
	raw, err := decode(data)
	if err != nil {
		return Query{}, err
	}
	if raw == nil {
		return All, nil
	}
	where, ok := raw.(map[string]any)
	if !ok {
		return Query{}, fmt.Errorf("where must be a JSON object, got %T", raw)
	}
	return p.Parse(where), nil
}

func (p *Parser) parseClause(field string, raw any) Clause {
	if m, ok := raw.(map[string]any); ok {
		if len(m) != 1 {
			return Invalid{Name: field, Reason: "operator object must have exactly one key"}
		}
		for op, arg := range m {
			fn, ok := p.ops[op]
			if !ok {
				return Invalid{Name: field, Reason: fmt.Sprintf("unsupported operator %q", op)}
			}
			return fn(field, arg)
		}
	}
	v, err := record.FromAny(raw)
	if err != nil {
		return Invalid{Name: field, Reason: err.Error()}
	}
	return Eq{Name: field, Value: v}
}

func parseIn(field string, arg any) Clause {
	var items []any
	switch a := arg.(type) {
	case []any:
		items = a
	case []string:
		for _, s := range a {
			items = append(items, s)
		}
	default:
		return Invalid{Name: field, Reason: "in expects a list"}
	}
	vals := make([]record.Value, 0, len(items))
	for _, it := range items {
		v, err := record.FromAny(it)
		if err != nil {
			return Invalid{Name: field, Reason: err.Error()}
		}
		vals = append(vals, v)
	}
	return In{Name: field, Values: vals}
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	return raw, nil
}
