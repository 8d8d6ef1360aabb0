// Package scheduler dispatches periodic profile refresh triggers.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/profile"
)

// parser accepts standard 5-field expressions and descriptors such as "@every 15m".
var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return parser.Parse(expr)
}

// Trigger dispatches refresh_requested on a cron schedule.
type Trigger struct {
	expr       string
	schedule   cronlib.Schedule
	dispatcher profile.Dispatcher
	logger     zerolog.Logger
}

// New creates a Trigger for expr.
func New(expr string, dispatcher profile.Dispatcher, logger zerolog.Logger) (*Trigger, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("refresh schedule is empty")
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", expr, err)
	}
	return &Trigger{
		expr:       expr,
		schedule:   schedule,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "refresh_scheduler").Str("schedule", expr).Logger(),
	}, nil
}

// Fire dispatches one scheduled refresh trigger.
func (t *Trigger) Fire(ctx context.Context) {
	t.logger.Debug().Msg("scheduled refresh fired")
	t.dispatcher.Dispatch(ctx, domain.ProfileRefreshRequested(1, domain.RefreshReasonScheduled))
}

// Run fires the trigger on schedule until ctx is done.
func (t *Trigger) Run(ctx context.Context) error {
	c := cronlib.New(cronlib.WithParser(parser), cronlib.WithChain(cronlib.SkipIfStillRunning(cronlib.DiscardLogger)))
	c.Schedule(t.schedule, cronlib.FuncJob(func() { t.Fire(ctx) }))

	c.Start()
	t.logger.Info().Msg("refresh scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	t.logger.Info().Msg("refresh scheduler stopped")
	return ctx.Err()
}
