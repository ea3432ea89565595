package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"BlogEnricher/internal/api"
	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/infrastructure/events"
	"BlogEnricher/internal/infrastructure/fetch"
	"BlogEnricher/internal/infrastructure/llm"
	"BlogEnricher/internal/infrastructure/parser"
	"BlogEnricher/internal/infrastructure/scheduler"
	"BlogEnricher/internal/infrastructure/search"
	"BlogEnricher/internal/infrastructure/storage"
	"BlogEnricher/internal/infrastructure/telegram"
	"BlogEnricher/internal/logging"
	"BlogEnricher/internal/metrics"
	"BlogEnricher/internal/ports"
	"BlogEnricher/internal/rewrite"
	"BlogEnricher/internal/scanner"
	"BlogEnricher/internal/usecase"
)

// Mode selects which store a command talks to.
type Mode int

const (
	// ModeClient is used by pipeline commands; the http driver points at the API.
	ModeClient Mode = iota
	// ModeServer backs the API itself, so the http driver falls back to the file store.
	ModeServer
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.ArticleStore
	events   ports.EventPublisher
	pipeline *usecase.Pipeline
	closers  []func(context.Context) error
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, mode Mode) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openStore(ctx, mode)
	if err != nil {
		return nil, err
	}
	a.store = store

	fetcher := fetch.New(cfg.Fetch, nil, baseLogger.With("component", "fetch"))

	registry := scanner.NewRegistry()
	registry.Register(parser.NewBlogScanner(fetcher, cfg.Fetch.ArticleTimeout, baseLogger.With("component", "scanner.blog")))
	source := parser.NewStrategySource(registry, cfg.Blog, baseLogger.With("component", "source"))

	finder := search.NewGoogleClient(cfg.Search, cfg.Blog.Origin(), baseLogger.With("component", "search"))
	rewriter := rewrite.New(llm.NewGenerator(cfg.LLM), baseLogger.With("component", "rewrite"))

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Configured() {
		notifier = tg
	}

	if len(cfg.Events.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Events)
		a.events = publisher
		a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		Store:    store,
		Fetcher:  fetcher,
		Finder:   finder,
		Rewriter: rewriter,
		Notifier: notifier,
		Events:   a.events,
		Logger:   baseLogger.With("component", "pipeline"),
		Options: usecase.PipelineOptions{
			OldestCount:      cfg.Blog.OldestCount,
			ArticleTimeout:   cfg.Fetch.ArticleTimeout,
			ReferenceTimeout: cfg.Fetch.ReferenceTimeout,
			Pause:            cfg.Pipeline.Pause,
		},
	})
	return a, nil
}

func (a *Application) openStore(ctx context.Context, mode Mode) (ports.ArticleStore, error) {
	driver := a.cfg.Store.Driver
	if mode == ModeServer && driver == config.DriverHTTP {
		driver = config.DriverFile
	}
	a.logger.Debug("opening article store", "driver", driver)

	switch driver {
	case config.DriverHTTP:
		return storage.NewAPIClient(a.cfg.Store.APIBaseURL, a.cfg.Store.Timeout), nil
	case config.DriverFile:
		return storage.NewFileRepository(a.cfg.Store.FilePath)
	case config.DriverPostgres:
		db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		return repo, nil
	case config.DriverMongo:
		repo, err := storage.NewMongoRepository(ctx, a.cfg.Mongo)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, driver)
	}
}

// Ingest performs one ingestion run.
func (a *Application) Ingest(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Ingest(ctx)
}

// Enrich performs one enrichment run.
func (a *Application) Enrich(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Enrich(ctx)
}

// Serve runs the record-store API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	server := api.New(a.store, a.logger.With("component", "api"))
	return server.ListenAndServe(ctx, a.cfg.Server.Addr())
}

// Schedule runs ingestion on the configured cron expression until ctx is
// cancelled. A non-empty metricsAddr also exposes /metrics there.
func (a *Application) Schedule(ctx context.Context, withEnrichment bool, metricsAddr string) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	driver := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		true,
		a.logger.With("component", "scheduler"),
	)
	sched := usecase.NewScheduler(driver, a.pipeline, withEnrichment, a.logger.With("component", "schedule"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	var metricsServer *http.Server
	if metricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("metrics listener starting", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(stopCtx)
	}
	if err := sched.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// ListArticles returns every stored record.
func (a *Application) ListArticles(ctx context.Context) ([]domain.Article, error) {
	return a.store.ListArticles(ctx)
}

// Close releases store connections and event writers.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
