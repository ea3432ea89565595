// Package main provides the blogenricher binary: blog ingestion, enrichment,
// the record-store API and the scheduled runner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"BlogEnricher/internal/app"
	"BlogEnricher/internal/config"
	"BlogEnricher/internal/logging"
	"BlogEnricher/internal/usecase"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "blogenricher"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Blog article ingestion and enrichment pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `blogenricher crawls a paginated blog for its oldest articles, stores them,
and later rewrites each one with references found through web search.

Records live behind the store selected in configuration: the bundled HTTP API,
a JSON file, Postgres or MongoDB.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		ingestCmd(flags),
		enrichCmd(flags),
		serveCmd(flags),
		scheduleCmd(flags),
		listCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func ingestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Discover the oldest blog articles and store them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, app.ModeClient, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				report, err := a.Ingest(ctx)
				printReport(cmd, report)
				return err
			})
		},
	}
}

func enrichCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Rewrite stored articles that are not enriched yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, app.ModeClient, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				report, err := a.Enrich(ctx)
				printReport(cmd, report)
				return err
			})
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the article record store over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, app.ModeServer, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				return a.Serve(ctx)
			})
		},
	}
}

func scheduleCmd(flags *globalFlags) *cobra.Command {
	var (
		withEnrichment bool
		metricsAddr    string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run ingestion now and then on the configured cron expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, app.ModeClient, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
				logger.Info("scheduler mode", "with_enrichment", withEnrichment)
				return a.Schedule(ctx, withEnrichment, metricsAddr)
			})
		},
	}
	cmd.Flags().BoolVar(&withEnrichment, "with-enrichment", false, "Run enrichment after each ingestion")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose /metrics on this address, e.g. :9090")
	return cmd
}

func listCmd(flags *globalFlags) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored articles as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, app.ModeClient, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				articles, err := a.ListArticles(ctx)
				if err != nil {
					return err
				}
				return renderTable(cmd.OutOrStdout(), articles, width)
			})
		},
	}
	cmd.Flags().IntVar(&width, "title-width", 48, "Maximum display width of the title column")
	return cmd
}

// withApp loads configuration, builds the application and runs fn until it
// returns or the process receives SIGINT/SIGTERM.
func withApp(flags *globalFlags, mode app.Mode, fn func(context.Context, *app.Application, *slog.Logger) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, mode)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Close(closeCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	return fn(ctx, application, logger)
}

func printReport(cmd *cobra.Command, r usecase.RunReport) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"%s: discovered=%d created=%d enriched=%d backfilled=%d skipped=%d failed=%d in %s\n",
		r.Run, r.Discovered, r.Created, r.Enriched, r.Backfilled, r.Skipped, r.Failed,
		r.Duration.Round(time.Millisecond))
}
