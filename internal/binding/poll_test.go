package binding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/testutil"
)

func TestPollingPicksUpOutsideWrites(t *testing.T) {
	src := testutil.NewSource()
	b := newBinding(t, src, "fleet")
	require.NoError(t, b.Load(context.Background(), query.Where(query.Equals("status", "available"))))

	require.NoError(t, b.StartPolling(time.Second))
	assert.True(t, b.Polling())

	_, err := src.Store.Insert("fleet", rec(map[string]any{"id": "v1", "status": "available"}))
	require.NoError(t, err)
	_, err = src.Store.Insert("fleet", rec(map[string]any{"id": "v2", "status": "maintenance"}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(b.Snapshot().Records) == 1
	}, 3*time.Second, 20*time.Millisecond, "poll re-runs the last query")
	assert.Equal(t, []string{"v1"}, idsOf(b.Snapshot().Records))
}

func TestStopPolling(t *testing.T) {
	src := testutil.NewSource()
	b := newBinding(t, src, "fleet")

	require.NoError(t, b.StartPolling(time.Second))
	require.NoError(t, b.StartPolling(time.Second), "restarting replaces the schedule")
	b.StopPolling()
	b.StopPolling()

	assert.False(t, b.Polling())
	calls := src.Calls("select")
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, src.Calls("select"))
}

func TestStartPollingRejectsBadInput(t *testing.T) {
	b := New(testutil.NewSource(), "fleet")

	assert.Error(t, b.StartPolling(0))

	b.Close()
	assert.ErrorIs(t, b.StartPolling(time.Second), ErrClosed)
}

func TestPollEveryRoundsUpToWholeSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{200 * time.Millisecond, time.Second},
		{time.Second, time.Second},
		{1500 * time.Millisecond, 2 * time.Second},
		{30 * time.Second, 30 * time.Second},
		{90*time.Second + time.Nanosecond, 91 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PollEvery(tt.in), tt.in.String())
	}
}

func TestCloseStopsPolling(t *testing.T) {
	src := testutil.NewSource()
	b := New(src, "fleet")
	require.NoError(t, b.StartPolling(time.Second))

	b.Close()

	assert.False(t, b.Polling())
}
