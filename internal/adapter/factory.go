package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tourdesk/internal/config"
	"github.com/roach88/tourdesk/internal/dataerr"
)

// Names lists the recognised adapter names.
var Names = []string{config.AdapterMock, config.AdapterSQLite, config.AdapterSupabase}

// New builds the adapter cfg selects. An unrecognised name is a CONFIG
// error; callers abort start-up on it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (Adapter, error) {
	switch cfg.Adapter {
	case config.AdapterMock:
		return NewMock(ctx, cfg.Latency, opts...)
	case config.AdapterSQLite:
		return NewSQLite(ctx, cfg.DatabasePath(), opts...)
	case config.AdapterSupabase:
		if cfg.DatabaseURL == "" {
			return nil, dataerr.Config("supabase adapter requires TOURDESK_DATABASE_URL")
		}
		return NewSupabase(ctx, cfg.DatabaseURL, opts...)
	default:
		return nil, dataerr.Config(fmt.Sprintf(
			"unknown data adapter %q (want one of %s)", cfg.Adapter, strings.Join(Names, ", "),
		))
	}
}
