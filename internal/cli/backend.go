package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tourdesk/internal/adapter"
	"github.com/roach88/tourdesk/internal/config"
	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/logging"
	"github.com/roach88/tourdesk/internal/schema"
	"github.com/roach88/tourdesk/internal/seed"
	"github.com/roach88/tourdesk/internal/session"
)

// Execute runs the root command with ctx and returns the process exit
// code. Errors the commands have not already reported are printed to
// stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, NewRootCommand(), args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors come straight from cobra.
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCommandError
	}
	if !exitErr.Reported {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitErr.Code
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// backend bundles what a command needs to talk to the backend.
type backend struct {
	adapter.Adapter
	cfg    config.Config
	logger *zap.Logger
}

func (b *backend) Close() error {
	err := b.Adapter.Close()
	_ = b.logger.Sync()
	return err
}

// connect loads the configuration and builds the adapter it selects.
// Configuration problems come back as CONFIG errors.
func (o *RootOptions) connect(ctx context.Context, cmd *cobra.Command) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.Adapter != "" {
		cfg.Adapter = strings.ToLower(strings.TrimSpace(o.Adapter))
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := logging.New(cmd.ErrOrStderr(), o.Verbose)

	reg := schema.Default()
	if cfg.SchemaFile != "" {
		if reg, err = schema.Load(cfg.SchemaFile); err != nil {
			return nil, dataerr.Config(fmt.Sprintf("TOURDESK_SCHEMA_FILE: %v", err))
		}
	}

	fixtures := seed.Default()
	if cfg.SeedFile != "" {
		if fixtures, err = seed.LoadFile(cfg.SeedFile); err != nil {
			return nil, dataerr.Config(fmt.Sprintf("TOURDESK_SEED_FILE: %v", err))
		}
	}

	persister, err := session.NewPersister(cfg.SessionStore, cfg.DataDir)
	if err != nil {
		return nil, dataerr.Config(err.Error())
	}

	opts := []adapter.Option{
		adapter.WithLogger(logger),
		adapter.WithSchema(reg),
		adapter.WithFixtures(fixtures),
		adapter.WithPersister(persister),
		adapter.WithJWTSecret(cfg.JWTSecret),
	}
	opts = append(opts, o.extra...)

	a, err := adapter.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("adapter ready",
		zap.String("adapter", a.Name()),
		zap.String("data_dir", cfg.DataDir),
	)
	return &backend{Adapter: a, cfg: cfg, logger: logger}, nil
}
