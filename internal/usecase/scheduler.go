package usecase

import (
	"context"
	"log/slog"
	"time"

	"BlogEnricher/internal/ports"
)

// Scheduler wires the cron driver with the pipeline runs.
type Scheduler struct {
	driver         ports.Scheduler
	pipeline       *Pipeline
	withEnrichment bool
	logger         *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ingestion. With
// withEnrichment each trigger also runs enrichment after ingestion.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, withEnrichment bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, pipeline: pipeline, withEnrichment: withEnrichment, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunOnce(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunOnce executes one scheduled cycle. Failures are logged; the schedule keeps going.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) {
	s.logger.Info("scheduled run triggered", "at", trigger.Format(time.RFC3339))

	if _, err := s.pipeline.Ingest(ctx); err != nil {
		s.logger.Error("scheduled ingestion failed", "error", err)
	}
	if !s.withEnrichment || ctx.Err() != nil {
		return
	}
	if _, err := s.pipeline.Enrich(ctx); err != nil {
		s.logger.Error("scheduled enrichment failed", "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
