package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tourdesk/internal/binding"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Where    string
	Interval time.Duration
	Count    int
}

// WatchUpdate is the JSON form of one refresh.
type WatchUpdate struct {
	Table   string          `json:"table"`
	State   string          `json:"state"`
	Records []record.Record `json:"records"`
	Error   string          `json:"error,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <table>",
		Short: "Print a table and re-print it on every refresh",
		Long: `Load a table and poll it, printing the records after every refresh.

The interval defaults to TOURDESK_POLL_INTERVAL and is rounded up to
whole seconds (500ms polls every second, 1.5s every two seconds). A failed refresh prints the error
and keeps the last records; polling continues.

Examples:
  tourdesk watch bookings --where '{"status": "pending"}'
  tourdesk watch fleet --interval 5s --count 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where-clause as a JSON object")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "refresh interval (default TOURDESK_POLL_INTERVAL)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many refreshes (0 runs until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command, table string) error {
	out := opts.formatter(cmd)
	q, err := query.ParseWhereJSON([]byte(opts.Where))
	if err != nil {
		return out.Fail("invalid --where", usageError("%v", err))
	}
	if opts.Count < 0 {
		return out.Fail("watch", usageError("--count must not be negative"))
	}
	for _, w := range query.Validate(q).Warnings {
		fmt.Fprintf(out.GetErrWriter(), "warning: %s\n", w)
	}

	return opts.withBackend(cmd, out, func(ctx context.Context, be *backend) error {
		interval := opts.Interval
		if !cmd.Flags().Changed("interval") {
			interval = be.cfg.PollInterval
		}

		b := binding.New(be, table, binding.WithLogger(be.logger))
		defer b.Close()

		updates := make(chan binding.Snapshot, 16)
		remove := b.OnChange(func(s binding.Snapshot) {
			if s.Loading || (s.State != binding.Ready && s.State != binding.Errored) {
				return
			}
			select {
			case updates <- s:
			default:
				be.logger.Warn("watch output is behind, dropping a refresh", zap.String("table", table))
			}
		})
		defer remove()

		// The first load runs here so its result cannot race the listener.
		if err := b.Load(ctx, q); err != nil {
			be.logger.Debug("initial load failed", zap.Error(err))
		}
		if err := b.StartPolling(interval); err != nil {
			return out.Fail("watch "+table, usageError("%v", err))
		}

		for printed := 0; opts.Count == 0 || printed < opts.Count; printed++ {
			select {
			case <-ctx.Done():
				return nil
			case s := <-updates:
				if err := printSnapshot(out, s); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func printSnapshot(out *OutputFormatter, s binding.Snapshot) error {
	update := WatchUpdate{Table: s.Table, State: string(s.State), Records: s.Records, Error: s.Err}
	return out.Success(update, func(w io.Writer) error {
		if s.State == binding.Errored {
			fmt.Fprintf(w, "== %s (%s: %s) ==\n", s.Table, s.State, s.Err)
		} else {
			fmt.Fprintf(w, "== %s (%s) ==\n", s.Table, s.State)
		}
		return writeRecords(w, s.Records)
	})
}
