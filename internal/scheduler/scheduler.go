package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// Refresher fetches and stores live telemetry for one location.
type Refresher interface {
	Refresh(ctx context.Context, location string) error
}

// Pruner drops expired knowledge entries.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Scheduler keeps tracked locations warm in the knowledge store and
// enforces its retention.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	refresher  Refresher
	pruner     Pruner
	locations  []weather.Location
	interval   time.Duration
	jobTimeout time.Duration
}

// New creates a new Scheduler. pruner may be nil.
func New(locations []weather.Location, interval time.Duration, refresher Refresher, pruner Pruner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		refresher:  refresher,
		pruner:     pruner,
		locations:  locations,
		interval:   interval,
		jobTimeout: 30 * time.Second,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if len(s.locations) == 0 {
		slog.Info("scheduler: no locations configured; skipping warm-up job")
	} else {
		if _, err := s.scheduler.Every(minutes).Minutes().Do(s.RefreshAll); err != nil {
			return err
		}
	}

	if s.pruner != nil {
		if _, err := s.scheduler.Every(1).Hour().Do(s.PruneOnce); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// maxConcurrentRefreshes bounds outbound telemetry calls per warm-up run.
const maxConcurrentRefreshes = 4

// RefreshAll refreshes every tracked location. A failing location is logged
// and does not stop the others.
func (s *Scheduler) RefreshAll() {
	slog.Info("scheduler: running warm-up job", "locations", len(s.locations))

	var g errgroup.Group
	g.SetLimit(maxConcurrentRefreshes)
	for _, loc := range s.locations {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
			defer cancel()

			if err := s.refresher.Refresh(ctx, loc.Query()); err != nil {
				slog.Warn("scheduler: refresh failed", "location", loc.Key(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("scheduler: completed warm-up job")
}

// PruneOnce applies the store retention policy.
func (s *Scheduler) PruneOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	n, err := s.pruner.Prune(ctx)
	if err != nil {
		slog.Warn("scheduler: prune failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("scheduler: pruned expired entries", "count", n)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
