package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultTickInterval is how often the engine checks its jobs.
const DefaultTickInterval = time.Minute

// Start runs RunTick on a fixed interval until ctx is cancelled. The first
// tick runs immediately; a tick that overruns its interval delays the next
// one instead of overlapping it.
func (e *Engine) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithClock(e.clock.Source()),
		gocron.WithLocation(e.clock.Location()),
	)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			e.RunTick(ctx)
		}),
		gocron.WithName("tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduling tick: %w", err)
	}

	slog.Info("scheduler started", "interval", interval)
	scheduler.Start()

	<-ctx.Done()

	slog.Info("scheduler stopping")
	return scheduler.Shutdown()
}
