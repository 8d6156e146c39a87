// Package record defines the row type shared by every table: a mapping from
// field name to a tagged Value, keyed within its table by the "id" field.
//
// Records arrive as loosely typed JSON or YAML documents. They are converted
// to Values once, at the boundary (FromMap, UnmarshalJSON), so the query
// engine and the stores never deal with arbitrary Go types.
package record

import (
	"fmt"
	"sort"
	"strconv"
)

// IDField is the name of the identifier field every record carries.
const IDField = "id"

// Record is one row of a table.
type Record map[string]Value

// FromMap converts a decoded document into a Record.
func FromMap(m map[string]any) (Record, error) {
	r := make(Record, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		r[k] = v
	}
	return r, nil
}

// MustFromMap is FromMap for literals in tests and fixtures. It panics on
// unsupported field types.
func MustFromMap(m map[string]any) Record {
	r, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return r
}

// ToMap converts the record back to plain Go values.
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = ToAny(v)
	}
	return out
}

// Get returns the value of field and whether it is present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// ID returns the string form of the record's identifier. The second result
// is false when the id is missing or is neither a string nor an integer.
func (r Record) ID() (string, bool) {
	v, ok := r[IDField]
	if !ok {
		return "", false
	}
	return IDString(v)
}

// IDString returns the key form of an id value.
func IDString(v Value) (string, bool) {
	switch id := v.(type) {
	case String:
		if id == "" {
			return "", false
		}
		return string(id), true
	case Int:
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Clone(v)
	}
	return out
}

// Merge returns a new record equal to r with every field present in patch
// overwritten. Fields absent from patch keep their value.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(patch))
	}
	for k, v := range patch {
		out[k] = Clone(v)
	}
	return out
}

// Fields returns the field names in sorted order.
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both records hold the same fields with equal values.
func (r Record) Equal(other Record) bool {
	return Equal(Object(r), Object(other))
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	return marshalObject(r)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := obj.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = Record(obj)
	return nil
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
