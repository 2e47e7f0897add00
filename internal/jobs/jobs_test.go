package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/history"
)

type fakeCapturer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCapturer) Capture(_ context.Context, accountNumber int64) (*history.CaptureResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &history.CaptureResult{Captured: 1, BatchID: "batch"}, nil
}

type fakeSweeper struct {
	maxAge time.Duration
	calls  atomic.Int32
}

func (f *fakeSweeper) SweepStale(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	f.calls.Add(1)
	return 0, nil
}

func TestRegisterFollowsConfig(t *testing.T) {
	cfg := config.Config{
		History:  config.HistoryConfig{Enabled: true, Schedule: "0 0 0 * * *"},
		Accounts: config.AccountsConfig{StaleAfter: 0, SweepSchedule: "@every 1m"},
	}

	r := NewRunner(context.Background(), time.UTC)
	require.NoError(t, Register(r, cfg, &fakeCapturer{}, &fakeSweeper{}))
	assert.Equal(t, 1, r.Len())

	cfg.Accounts.StaleAfter = 10 * time.Minute
	r = NewRunner(context.Background(), time.UTC)
	require.NoError(t, Register(r, cfg, &fakeCapturer{}, &fakeSweeper{}))
	assert.Equal(t, 2, r.Len())

	cfg.History.Enabled = false
	cfg.Accounts.StaleAfter = 0
	r = NewRunner(context.Background(), time.UTC)
	require.NoError(t, Register(r, cfg, &fakeCapturer{}, &fakeSweeper{}))
	assert.Equal(t, 0, r.Len())
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	cfg := config.Config{History: config.HistoryConfig{Enabled: true, Schedule: "every day please"}}

	err := Register(NewRunner(context.Background(), nil), cfg, &fakeCapturer{}, &fakeSweeper{})
	assert.ErrorContains(t, err, "invalid history schedule")
}

func TestJobFuncs(t *testing.T) {
	capturer := &fakeCapturer{err: errors.New("db gone")}
	CaptureHistory(capturer)(context.Background())
	assert.Equal(t, int32(1), capturer.calls.Load())

	sweeper := &fakeSweeper{}
	SweepStale(sweeper, 5*time.Minute)(context.Background())
	assert.Equal(t, 5*time.Minute, sweeper.maxAge)
}

func TestRunnerExecutesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	r := NewRunner(ctx, time.UTC)
	_, err := r.Add("tick", "* * * * * *", func(jobCtx context.Context) {
		assert.NoError(t, jobCtx.Err())
		runs.Add(1)
	})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunnerRecoversPanics(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(context.Background(), time.UTC)
	_, err := r.Add("panics", "* * * * * *", func(context.Context) {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunnerKeepsSchedulingAfterPanic(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(context.Background(), time.UTC)
	_, err := r.Add("flaky", "* * * * * *", func(context.Context) {
		if runs.Add(1) == 1 {
			panic("transient failure")
		}
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 5*time.Second, 50*time.Millisecond)
}
