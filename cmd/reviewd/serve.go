package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/aphrc/proposal-review/infrastructure/httpapi"
	"github.com/aphrc/proposal-review/infrastructure/markup"
	"github.com/aphrc/proposal-review/infrastructure/middleware"
	"github.com/aphrc/proposal-review/infrastructure/mirror"
	"github.com/aphrc/proposal-review/infrastructure/redcap"
	"github.com/aphrc/proposal-review/infrastructure/spreadsheet"
	"github.com/aphrc/proposal-review/internal/application"
	"github.com/aphrc/proposal-review/internal/ports"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review dashboard HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root.configFile)
		},
	}
}

func runServe(ctx context.Context, configFile string) error {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.LoadFromFile(ctx, configFile)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewPrometheusMetrics(reg)

	client, err := redcap.NewClient(redcap.ClientConfig{
		URL:        cfg.Redcap.URL,
		Token:      cfg.Redcap.Token,
		Timeout:    cfg.Redcap.Timeout,
		Middleware: clientMiddleware(cfg.Redcap, metrics),
	})
	if err != nil {
		return fmt.Errorf("failed to create REDCap client: %w", err)
	}

	store, closeStore, err := openMirror(ctx, cfg.Mirror)
	if err != nil {
		return err
	}
	defer closeStore()

	controllers, health, err := buildControllers(cfg, client, store, metrics)
	if err != nil {
		return err
	}
	srv := httpapi.MakeServer(cfg.Server, httpapi.NewRouter(controllers, reg))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	health.SetReady(true)
	log.Infof("Review service started against %s", client.Endpoint())

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCtx.Done():
		log.Info("Start shutdown...")
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Could not stop server gracefully: %v", err)
		return srv.Close()
	}
	log.Info("Review service stopped")
	return nil
}

// clientMiddleware builds the REDCap chain, outermost first. Disabled
// policies are left out.
func clientMiddleware(cfg application.RedcapConfig, metrics *middleware.PrometheusMetrics) []redcap.Middleware {
	chain := []redcap.Middleware{
		redcap.TracingMiddleware("proposal-review"),
		redcap.MetricsMiddleware(metrics),
	}
	if cb := cfg.CircuitBreaker; cb.MaxFailures > 0 {
		chain = append(chain, redcap.CircuitBreakerMiddlewareWithMetrics(cb.MaxFailures, cb.Cooldown, metrics.CircuitBreaker()))
	}
	if r := cfg.Retry; r.MaxRetries > 0 {
		chain = append(chain, redcap.RetryMiddleware(r.MaxRetries, r.BaseDelay, r.MaxDelay))
	}
	if rl := cfg.RateLimit; rl.RequestsPerSecond > 0 {
		chain = append(chain, redcap.RateLimitMiddleware(rate.Limit(rl.RequestsPerSecond), rl.Burst))
	}
	if cfg.Timeout > 0 {
		chain = append(chain, redcap.TimeoutMiddleware(cfg.Timeout))
	}
	return chain
}

// fetchTimeout covers every attempt the retry policy may make.
func fetchTimeout(cfg application.RedcapConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 0
	}
	attempts := time.Duration(cfg.Retry.MaxRetries + 1)
	return cfg.Timeout*attempts + cfg.Retry.MaxDelay*time.Duration(cfg.Retry.MaxRetries)
}

func openMirror(ctx context.Context, cfg application.MirrorConfig) (ports.MirrorStore, func(), error) {
	if cfg.Driver != "postgres" {
		return mirror.NewMemoryStore(), func() {}, nil
	}
	store, err := mirror.NewPostgresStore(ctx, mirror.PostgresOptions{
		Addr:     cfg.Postgres.Addr,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mirror store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warnf("Failed to close mirror store: %v", err)
		}
	}, nil
}

func buildControllers(cfg *application.Config, client ports.REDCap, store ports.MirrorStore, metrics ports.MetricsCollector) (httpapi.Controllers, httpapi.HealthController, error) {
	aggregator, err := application.NewAggregator(cfg.Scoring)
	if err != nil {
		return httpapi.Controllers{}, nil, err
	}
	profile := aggregator.Calculator().Profile()

	dashboard, err := application.NewDashboardService(application.DashboardOptions{
		Source:     client,
		Aggregator: aggregator,
		Metrics:    metrics,
		Exporter:   application.NewExporter(spreadsheet.ExcelWriter{}, markup.Stripper{}, cfg.Export.SheetName, cfg.Export.FilePrefix),

		FetchTimeout: fetchTimeout(cfg.Redcap),
	})
	if err != nil {
		return httpapi.Controllers{}, nil, err
	}
	sheets, err := application.NewMarkingSheetService(client, client, profile, cfg.Redcap.Instruments)
	if err != nil {
		return httpapi.Controllers{}, nil, err
	}
	queues, err := application.NewReviewQueueService(client, client, profile.Fields, cfg.Redcap.Instruments)
	if err != nil {
		return httpapi.Controllers{}, nil, err
	}
	webhooks, err := application.NewWebhookService(client, store, cfg.Mirror.ListLimit)
	if err != nil {
		return httpapi.Controllers{}, nil, err
	}

	health := httpapi.NewHealthController(webhooks)
	return httpapi.Controllers{
		Reviews:   httpapi.NewReviewsController(dashboard),
		Reviewers: httpapi.NewReviewerController(sheets, queues),
		Webhooks:  httpapi.NewWebhookController(webhooks),
		Health:    health,
	}, health, nil
}
