// Package jobs runs the scheduled background work of the server.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Runner wraps a seconds-resolution cron scheduler. Jobs receive the base
// context so they stop with the server.
type Runner struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	baseCtx context.Context
}

// NewRunner creates a runner whose schedules are evaluated in loc. A panic in
// one job is logged and does not stop the scheduler; a job still running when
// its next tick arrives skips that tick.
func NewRunner(baseCtx context.Context, loc *time.Location) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}

	logger := log.With().Str("service", "jobs").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			// Recover sits inside SkipIfStillRunning so a panicking run still
			// releases the running guard.
			cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules job under name
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		started := time.Now()
		job(r.baseCtx)
		r.logger.Debug().Str("job", name).Dur("took", time.Since(started)).Msg("job finished")
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return id, nil
}

// Len returns the number of scheduled jobs
func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	r.logger.Info().Int("jobs", r.Len()).Msg("cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("cron stopped")
}
