package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// withBackend connects, runs fn and closes the adapter. Connection
// failures are reported through out.
func (o *RootOptions) withBackend(cmd *cobra.Command, out *OutputFormatter, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	b, err := o.connect(ctx, cmd)
	if err != nil {
		return out.Fail("cannot start data adapter", err)
	}
	defer b.Close()
	return fn(ctx, b)
}

// usageError marks a bad argument; it exits with ExitCommandError.
func usageError(format string, args ...any) *ExitError {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...))
}

func parseRecord(arg, what string) (record.Record, error) {
	var r record.Record
	if err := json.Unmarshal([]byte(arg), &r); err != nil {
		return nil, usageError("%s must be a JSON object: %v", what, err)
	}
	return r, nil
}

// TableInfo is one entry of the tables listing.
type TableInfo struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and their record counts",
		Example: `  tourdesk tables
  tourdesk tables --adapter sqlite --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				names, err := b.Tables(ctx)
				if err != nil {
					return out.Fail("list tables", err)
				}
				infos := make([]TableInfo, 0, len(names))
				for _, name := range names {
					rows, err := b.Select(ctx, name, query.All)
					if err != nil {
						return out.Fail("count "+name, err)
					}
					infos = append(infos, TableInfo{Name: name, Records: len(rows)})
				}
				return out.Success(infos, func(w io.Writer) error {
					if len(infos) == 0 {
						_, err := fmt.Fprintln(w, "(no tables)")
						return err
					}
					for _, info := range infos {
						fmt.Fprintf(w, "%s (%d)\n", info.Name, info.Records)
					}
					return nil
				})
			})
		},
	}
}

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	*RootOptions
	Where string
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "select <table>",
		Short: "Print the records of a table that match a where-clause",
		Long: `Print the records of a table that match a where-clause.

The where-clause is a JSON object mapping field names to either a value
(strict equality) or {"in": [values...]} (membership). All clauses must
hold. Clauses that can never match are reported as warnings.

Examples:
  tourdesk select clients
  tourdesk select bookings --where '{"status": "active"}'
  tourdesk select bookings --where '{"status": {"in": ["active", "vip"]}}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where-clause as a JSON object")

	return cmd
}

func runSelect(opts *SelectOptions, cmd *cobra.Command, table string) error {
	out := opts.formatter(cmd)
	q, err := query.ParseWhereJSON([]byte(opts.Where))
	if err != nil {
		return out.Fail("invalid --where", usageError("%v", err))
	}
	check := query.Validate(q)

	return opts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
		rows, err := b.Select(ctx, table, q)
		if err != nil {
			return out.Fail("select "+table, err)
		}
		return out.SuccessWithWarnings(rows, check.Warnings, func(w io.Writer) error {
			return writeRecords(w, rows)
		})
	})
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <json>",
		Short: "Insert a record",
		Long: `Insert a record into a table and print the stored record.

An id is generated when the record has none. Inserting an id that is
already present fails with CONFLICT.

Example:
  tourdesk insert clients '{"name": "Elena Rocha", "tier": "gold"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			rec, err := parseRecord(args[1], "record")
			if err != nil {
				return out.Fail("invalid record", err)
			}
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				stored, err := b.Insert(ctx, args[0], rec)
				if err != nil {
					return out.Fail("insert into "+args[0], err)
				}
				return out.Success(stored, func(w io.Writer) error {
					return writeRecord(w, stored)
				})
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <id> <json>",
		Short: "Merge a patch into a record",
		Long: `Merge a patch into the record with the given id and print the result.

Fields in the patch overwrite, other fields are kept. The id cannot be
changed.

Example:
  tourdesk update fleet v-3 '{"status": "available"}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			patch, err := parseRecord(args[2], "patch")
			if err != nil {
				return out.Fail("invalid patch", err)
			}
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				updated, err := b.Update(ctx, args[0], args[1], patch)
				if err != nil {
					return out.Fail("update "+args[0], err)
				}
				return out.Success(updated, func(w io.Writer) error {
					return writeRecord(w, updated)
				})
			})
		},
	}
}

// DeleteResult is the JSON payload of the delete command.
type DeleteResult struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <table> <id>",
		Short:         "Delete a record",
		Example:       `  tourdesk delete bookings b-4`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			table, id := args[0], args[1]
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				removed, err := b.Delete(ctx, table, id)
				if err != nil {
					return out.Fail("delete from "+table, err)
				}
				if !removed {
					return out.Fail("delete from "+table, dataerr.NotFound(table, id))
				}
				return out.Success(DeleteResult{Table: table, ID: id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted %s/%s\n", table, id)
					return err
				})
			})
		},
	}
}
