package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/history"
)

// HistoryCapturer copies account rows into history
type HistoryCapturer interface {
	Capture(ctx context.Context, accountNumber int64) (*history.CaptureResult, error)
}

// StaleSweeper removes accounts that stopped reporting
type StaleSweeper interface {
	SweepStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// CaptureHistory returns the job that snapshots every account
func CaptureHistory(capturer HistoryCapturer) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := capturer.Capture(ctx, 0); err != nil {
			log.Error().Err(err).Str("job", "history_capture").Msg("scheduled history capture failed")
		}
	}
}

// SweepStale returns the job that deletes accounts idle for longer than maxAge
func SweepStale(sweeper StaleSweeper, maxAge time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := sweeper.SweepStale(ctx, maxAge); err != nil {
			log.Error().Err(err).Str("job", "stale_sweep").Msg("stale account sweep failed")
		}
	}
}

// Register schedules the jobs enabled in cfg
func Register(r *Runner, cfg config.Config, capturer HistoryCapturer, sweeper StaleSweeper) error {
	if cfg.History.Enabled {
		if _, err := r.Add("history_capture", cfg.History.Schedule, CaptureHistory(capturer)); err != nil {
			return fmt.Errorf("invalid history schedule %q: %w", cfg.History.Schedule, err)
		}
	}
	if cfg.Accounts.StaleAfter > 0 {
		if _, err := r.Add("stale_sweep", cfg.Accounts.SweepSchedule, SweepStale(sweeper, cfg.Accounts.StaleAfter)); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", cfg.Accounts.SweepSchedule, err)
		}
	}
	return nil
}
