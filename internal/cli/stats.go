package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourdesk/internal/metrics"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Locale string
}

// StatResult is the JSON form of one metric.
type StatResult struct {
	Name    string         `json:"name"`
	Table   string         `json:"table"`
	Kind    string         `json:"kind"`
	Value   *float64       `json:"value"`
	Groups  map[string]int `json:"groups,omitempty"`
	Display string         `json:"display"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <dashboard>",
		Short: "Compute the summary figures of a dashboard",
		Long: fmt.Sprintf(`Compute the summary figures of a dashboard.

Dashboards: %s

Figures with nothing to aggregate (an average over no values) print n/a.

Examples:
  tourdesk stats fleet
  tourdesk stats club --locale pt-BR`, strings.Join(metrics.PresetNames(), ", ")),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Locale, "locale", "en", "locale used to format numbers")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command, dashboard string) error {
	out := opts.formatter(cmd)
	ms, ok := metrics.Preset(dashboard)
	if !ok {
		return out.Fail("stats", usageError("unknown dashboard %q (want one of %s)",
			dashboard, strings.Join(metrics.PresetNames(), ", ")))
	}
	np, err := newNumberPrinter(opts.Locale)
	if err != nil {
		return out.Fail("stats", usageError("%v", err))
	}

	return opts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
		results, err := metrics.Compute(ctx, b, ms)
		if err != nil {
			return out.Fail("compute "+dashboard, err)
		}

		payload := make([]StatResult, 0, len(results))
		for _, r := range results {
			sr := StatResult{
				Name:    r.Name,
				Table:   r.Table,
				Kind:    string(r.Kind),
				Groups:  r.Groups,
				Display: np.result(r),
			}
			if r.Defined {
				v := r.Value
				sr.Value = &v
			}
			payload = append(payload, sr)
		}
		return out.Success(payload, func(w io.Writer) error {
			return writeResults(w, np, results)
		})
	})
}
