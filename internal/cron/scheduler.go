// Package cron schedules the tgcored daemon's periodic stats line via a
// cron expression, reusing the cron parser/scheduler the rest of the
// corpus favours for anything recurring.
package cron

import (
	"context"
	"log/slog"

	cronlib "github.com/robfig/cron/v3"
)

// Stats is one snapshot worth of logging, gathered from the throttle
// worker, poller, and dispatch router at report time.
type Stats struct {
	ThrottleQueueDepth int
	PollerOffset       int32
	RouterActiveChats  int
}

// StatsSource produces a Stats snapshot on demand. The daemon's
// composition root implements this by closing over its throttle, poller
// and router instances.
type StatsSource func() Stats

// Reporter periodically logs a Stats snapshot on a cron schedule.
type Reporter struct {
	cron   *cronlib.Cron
	logger *slog.Logger
	source StatsSource
}

// NewReporter builds a Reporter. expr is a standard 6-field cron
// expression (seconds field included, per robfig/cron/v3's default
// parser) such as "0 * * * * *" for once a minute.
func NewReporter(expr string, source StatsSource, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{
		cron:   cronlib.New(cronlib.WithSeconds()),
		logger: logger,
		source: source,
	}
	if _, err := r.cron.AddFunc(expr, r.report); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the cron schedule. Stop must be called to release its
// goroutine.
func (r *Reporter) Start() { r.cron.Start() }

// Stop cancels the schedule and waits for any in-flight report to finish.
func (r *Reporter) Stop(ctx context.Context) {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (r *Reporter) report() {
	s := r.source()
	r.logger.Info("tgcore stats",
		"throttle_queue_depth", s.ThrottleQueueDepth,
		"poller_offset", s.PollerOffset,
		"router_active_chats", s.RouterActiveChats,
	)
}
