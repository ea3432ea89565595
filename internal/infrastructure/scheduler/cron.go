package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"BlogEnricher/internal/ports"
)

// CronScheduler triggers jobs on a standard five-field cron expression.
// Overlapping triggers are skipped while a job is still running, and Stop
// waits for the running job, including the immediate one.
type CronScheduler struct {
	spec           string
	location       *time.Location
	runImmediately bool
	logger         *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.Mutex
	stopped atomic.Bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for spec evaluated in loc.
// With runImmediately the job also fires once on Start.
func NewCronScheduler(spec string, loc *time.Location, runImmediately bool, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{spec: spec, location: loc, runImmediately: runImmediately, logger: logger}
}

// Validate parses the expression without starting anything.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Start registers job and begins ticking until ctx is cancelled or Stop is called.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	engine := cron.New(cron.WithLocation(c.location))
	trigger := func() { c.fire(job) }
	if _, err := engine.AddFunc(c.spec, trigger); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}

	c.cron = engine
	c.stopped.Store(false)
	engine.Start()
	c.logger.Info("scheduler started", "cron", c.spec, "timezone", c.location.String())

	if c.runImmediately {
		go trigger()
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts scheduling and waits for a running job, bounded by ctx. Jobs that
// have not started yet are dropped. Every caller waits, not only the first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.stopped.Store(true)

	c.mu.Lock()
	engine := c.cron
	c.cron = nil
	c.mu.Unlock()

	if engine != nil {
		engine.Stop()
	}

	idle := make(chan struct{})
	go func() {
		c.running.Lock()
		c.running.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		if engine != nil {
			c.logger.Info("scheduler stopped")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronScheduler) fire(job func(time.Time)) {
	if !c.running.TryLock() {
		c.logger.Warn("previous run still in progress, trigger skipped")
		return
	}
	defer c.running.Unlock()
	if c.stopped.Load() {
		return
	}
	job(time.Now().In(c.location))
}
