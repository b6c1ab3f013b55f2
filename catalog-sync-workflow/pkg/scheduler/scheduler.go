// =============================================================================
// pkg/scheduler/scheduler.go - Periodic Import Trigger
// =============================================================================
//
// The Scheduler triggers an import run every Interval until its context ends.
// Runs go through the import Guard, so a tick that fires while an HTTP
// triggered run is in flight joins that run. A failed or aborted run is
// logged and the loop continues.
//
// =============================================================================

package scheduler

import (
	"context"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
)

// DefaultInterval matches the catalog publisher's refresh cadence.
const DefaultInterval = 2 * time.Minute

// Trigger starts or joins an import run.
type Trigger interface {
	Run(ctx context.Context) (importer.RunReport, bool)
}

// Options configures a Scheduler.
type Options struct {
	// Interval between runs (default 2m)
	Interval time.Duration

	// RunTimeout bounds each run; 0 means no limit
	RunTimeout time.Duration

	// RunOnStart triggers a run immediately instead of after the first Interval
	RunOnStart bool
}

// Scheduler runs imports on a fixed interval.
type Scheduler struct {
	trigger Trigger
	logger  interfaces.Logger
	opts    Options
	runs    int
}

// New creates a Scheduler.
func New(trigger Trigger, logger interfaces.Logger, opts Options) (*Scheduler, error) {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Interval < 0 {
		return nil, errors.Newf(errors.ErrInvalidArgument, "interval must be positive, got %s", opts.Interval)
	}
	if opts.RunTimeout < 0 {
		return nil, errors.Newf(errors.ErrInvalidArgument, "run timeout must not be negative, got %s", opts.RunTimeout)
	}
	return &Scheduler{
		trigger: trigger,
		logger:  logger.WithScope("SCHEDULER"),
		opts:    opts,
	}, nil
}

// Run blocks until ctx is done. It always returns nil; run failures are
// reported by the importer.
func (s *Scheduler) Run(ctx context.Context) error {
	timeout := "none"
	if s.opts.RunTimeout > 0 {
		timeout = helpers.FormatDuration(s.opts.RunTimeout)
	}
	s.logger.Info("Scheduler started: every %s, run timeout %s, run on start %t",
		helpers.FormatDuration(s.opts.Interval), timeout, s.opts.RunOnStart)

	if s.opts.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped after %d runs", s.runs)
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx := ctx
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	s.runs++
	report, shared := s.trigger.Run(runCtx)
	if shared {
		s.logger.Info("Run %d joined an import already in flight", s.runs)
	}
	if report.State == importer.StateAborted {
		s.logger.Error("Run %d aborted: %s", s.runs, report.Err)
	}
}
