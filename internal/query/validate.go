package query

import "fmt"

// ValidationResult lists problems found in a query. A query with warnings
// is still executable; the flagged clauses simply match nothing.
type ValidationResult struct {
	// OK is true when every clause can match some record.
	OK bool

	// Warnings describes each clause that can never match.
	Warnings []string
}

// Validate walks the clauses of q. It is a pure function.
func Validate(q Query) ValidationResult {
	v := &validator{warnings: []string{}}
	for i, c := range q.Where {
		v.validateClause(i, c)
	}
	return ValidationResult{
		OK:       len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateClause(i int, c Clause) {
	switch clause := c.(type) {
	case nil:
		v.addWarning("clause %d is nil", i)
	case Invalid:
		if clause.Name == "" {
			v.addWarning("clause %d: %s", i, clause.Reason)
			return
		}
		v.addWarning("field %q: %s - clause matches nothing", clause.Name, clause.Reason)
	case In:
		if len(clause.Values) == 0 {
			v.addWarning("field %q: empty in-set matches nothing", clause.Name)
		}
	case Eq:
		if clause.Name == "" {
			v.addWarning("clause %d has an empty field name", i)
		}
	default:
		// Registered operators are trusted.
	}
}
