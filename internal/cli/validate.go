package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tourdesk/internal/record"
	"github.com/roach88/tourdesk/internal/schema"
	"github.com/roach88/tourdesk/internal/seed"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema string
}

// FixtureError is one row that would be rejected when seeding.
type FixtureError struct {
	Table   string `json:"table"`
	Row     int    `json:"row"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Fixtures string         `json:"fixtures"`
	Valid    bool           `json:"valid"`
	Rows     int            `json:"rows"`
	Errors   []FixtureError `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [fixtures.yaml]",
		Short: "Check mock fixtures against the table schemas",
		Long: `Check a fixtures file against the table schemas without starting an
adapter. Without an argument the built-in fixtures are checked.

Every row is checked; all problems are reported, not only the first.
Tables without a schema are listed as warnings.

Examples:
  tourdesk validate
  tourdesk validate ./demo.yaml --schema ./tables.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, cmd, path)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file (default: built-in schemas)")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command, path string) error {
	out := opts.formatter(cmd)

	fixtures := seed.Default()
	source := "built-in"
	if path != "" {
		f, err := seed.LoadFile(path)
		if err != nil {
			return out.Fail("load fixtures", usageError("%v", err))
		}
		fixtures, source = f, path
	}

	reg := schema.Default()
	if opts.Schema != "" {
		r, err := schema.Load(opts.Schema)
		if err != nil {
			return out.Fail("load schema", usageError("%v", err))
		}
		reg = r
	}
	out.VerboseLog("Checking %s fixtures against %d table schema(s)", source, len(reg.Tables()))

	result := validateFixtures(fixtures, reg)
	result.Fixtures = source

	if result.Valid {
		return out.SuccessWithWarnings(result, result.Warnings, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "✓ All fixtures valid (%s, %s)\n", source, plural(result.Rows, "row"))
			return err
		})
	}
	return outputValidationErrors(out, result)
}

// validateFixtures checks every row of f, collecting all problems.
func validateFixtures(f *seed.Fixtures, reg *schema.Registry) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, table := range f.TableNames() {
		if !reg.Has(table) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("table %q has no schema; its rows are not checked", table))
		}
		seen := make(map[string]bool)
		for i, row := range f.Tables[table] {
			result.Rows++
			fail := func(id, msg string) {
				result.Valid = false
				result.Errors = append(result.Errors, FixtureError{Table: table, Row: i, ID: id, Message: msg})
			}

			r, err := record.FromMap(row)
			if err != nil {
				fail("", err.Error())
				continue
			}
			id, ok := r.ID()
			if !ok {
				fail("", "id must be a non-empty string or an integer")
				continue
			}
			if seen[id] {
				fail(id, "duplicate id")
				continue
			}
			seen[id] = true
			if err := reg.Validate(table, r); err != nil {
				fail(id, errorMessage(err))
			}
		}
	}
	return result
}

// outputValidationErrors outputs every rejected row.
func outputValidationErrors(out *OutputFormatter, result ValidationResult) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	failure.Reported = true

	if out.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "INVALID_RECORD",
				Message: failure.Message,
			},
			Warnings: result.Warnings,
		}
		if err := json.NewEncoder(out.Writer).Encode(response); err != nil {
			return err
		}
		return failure
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(out.GetErrWriter(), "warning: %s\n", w)
	}
	fmt.Fprintln(out.Writer, "✗ Validation failed")
	fmt.Fprintln(out.Writer)
	for _, e := range result.Errors {
		if e.ID != "" {
			fmt.Fprintf(out.Writer, "%s[%d] (id %s)\n", e.Table, e.Row, e.ID)
		} else {
			fmt.Fprintf(out.Writer, "%s[%d]\n", e.Table, e.Row)
		}
		fmt.Fprintf(out.Writer, "  %s\n\n", e.Message)
	}
	return failure
}
