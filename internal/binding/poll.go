package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartPolling re-runs the most recent load every interval until
// StopPolling or Close. The interval is rounded up to whole seconds, so
// 500ms polls every second and 1.5s every two. A tick that finds the
// previous refresh still running is skipped. Starting again replaces the
// running schedule.
func (b *Binding) StartPolling(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+PollEvery(interval).String(), b.refresh); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	previous := b.poller
	b.poller = c
	b.mu.Unlock()

	if previous != nil {
		<-previous.Stop().Done()
	}
	c.Start()
	b.logger.Debug("polling started", zap.Duration("interval", interval))
	return nil
}

// PollEvery returns the period StartPolling actually uses for interval:
// interval rounded up to a whole number of seconds.
func PollEvery(interval time.Duration) time.Duration {
	if rem := interval % time.Second; rem != 0 {
		interval += time.Second - rem
	}
	return interval
}

// StopPolling stops the refresh schedule and waits for a running refresh
// to finish.
func (b *Binding) StopPolling() {
	b.mu.Lock()
	c := b.poller
	b.poller = nil
	b.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		b.logger.Debug("polling stopped")
	}
}

// Polling reports whether a refresh schedule is active.
func (b *Binding) Polling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.poller != nil
}

func (b *Binding) refresh() {
	err := b.Reload(b.ctx)
	switch {
	case err == nil, errors.Is(err, ErrStale), errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
	default:
		b.logger.Debug("refresh failed", zap.Error(err))
	}
}
