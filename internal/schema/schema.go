// Package schema validates records against per-table CUE definitions.
//
// A table is described by a top-level definition named after it, e.g.
// #bookings. Tables without a definition accept any record.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/record"
)

//go:embed tables.cue
var defaultSchema string

// Registry holds compiled table definitions.
type Registry struct {
	ctx    *cue.Context
	tables map[string]cue.Value
}

// Default returns the registry for the built-in dashboard tables.
func Default() *Registry {
	r, err := Compile(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("schema: built-in tables do not compile: %v", err))
	}
	return r
}

// Load compiles the CUE file at path.
func Load(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(string(src))
}

// Compile builds a registry from CUE source.
func Compile(src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %s", describe(err))
	}

	r := &Registry{ctx: ctx, tables: make(map[string]cue.Value)}
	iter, err := v.Fields(cue.Definitions(true))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %s", describe(err))
	}
	for iter.Next() {
		sel := iter.Selector()
		if !sel.IsDefinition() {
			continue
		}
		name := strings.TrimPrefix(sel.String(), "#")
		r.tables[name] = iter.Value()
	}
	return r, nil
}

// Tables returns the names of tables with a definition, sorted.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether table has a definition.
func (r *Registry) Has(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// Validate checks a complete record. Every required field must be present
// and concrete.
func (r *Registry) Validate(table string, rec record.Record) error {
	return r.check(table, rec, true)
}

// ValidatePatch checks only the fields a patch carries.
func (r *Registry) ValidatePatch(table string, patch record.Record) error {
	return r.check(table, patch, false)
}

func (r *Registry) check(table string, rec record.Record, complete bool) error {
	def, ok := r.tables[table]
	if !ok {
		return nil
	}
	v := def.Unify(r.ctx.Encode(rec.ToMap()))

	var err error
	if complete {
		err = v.Validate(cue.Concrete(true))
	} else {
		err = v.Validate()
	}
	if err != nil {
		return dataerr.InvalidRecord(table, describe(err))
	}
	return nil
}

// describe joins the messages of a CUE error list.
func describe(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
