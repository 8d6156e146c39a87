package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tourdesk/internal/adapter"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Adapter overrides TOURDESK_DATA_ADAPTER when set.
	Adapter string

	// extra is appended to the options every command builds its adapter
	// with. Tests use it to pin ids and lower the bcrypt cost.
	extra []adapter.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tourdesk CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tourdesk",
		Short: "tourdesk - tour operator data desk",
		Long: `Query and edit the tables behind the tour operator dashboards.

The data backend is chosen by TOURDESK_DATA_ADAPTER (mock, sqlite or
supabase) or the --adapter flag. The mock backend starts from the
built-in fixtures on every invocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Adapter, "adapter", "", "data adapter (mock|sqlite|supabase), overrides TOURDESK_DATA_ADAPTER")

	// Data commands
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	// Account commands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewSignupCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
