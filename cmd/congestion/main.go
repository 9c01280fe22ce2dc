// Command congestion measures how often traffic sensors report speeds below
// a congestion threshold and compares the configured datasets. Results go to
// stdout and a chart, and optionally to Kafka, MQTT and SQLite. With
// HTTP_ADDR set the process stays up and serves the latest results.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/traffic-congestion/internal/adapter/chart"
	"github.com/couchcryptid/traffic-congestion/internal/adapter/console"
	"github.com/couchcryptid/traffic-congestion/internal/adapter/dataset"
	httpadapter "github.com/couchcryptid/traffic-congestion/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/traffic-congestion/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-congestion/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/traffic-congestion/internal/adapter/mqtt"
	"github.com/couchcryptid/traffic-congestion/internal/adapter/sqlite"
	"github.com/couchcryptid/traffic-congestion/internal/config"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
	"github.com/couchcryptid/traffic-congestion/internal/observability"
	"github.com/couchcryptid/traffic-congestion/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reporters, closers, err := buildReporters(ctx, cfg, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	loader := dataset.NewLoader(cfg.Rule, logger)
	analyzer := pipeline.NewAnalyzer(cfg.Rule, cfg.TopSensors, cfg.HistogramBins, dataset.LoadLocations, geocoder, logger)
	p := pipeline.New(loader, analyzer, reporters, cfg.Datasets, cfg.Rule.Threshold, logger, metrics)

	if !cfg.ServeMode() {
		_, runErr := p.Run(ctx)
		return errors.Join(runErr, writeMetrics(cfg, metrics, logger))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, metrics.Gatherer(), logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline error", "error", err)
	}
	if err := writeMetrics(cfg, metrics, logger); err != nil {
		logger.Error("metrics textfile error", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildReporters creates the console and chart reporters plus every sink
// enabled by cfg. Closers are returned even on error so callers can release
// what was opened.
func buildReporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Reporter, []namedCloser, error) {
	reporters := []pipeline.Reporter{
		console.NewReporter(os.Stdout),
		chart.NewReporter(cfg.ChartPath, cfg.HistogramBins, logger),
	}
	var closers []namedCloser

	if len(cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(cfg, logger)
		reporters = append(reporters, w)
		closers = append(closers, namedCloser{"kafka writer", w})
	}
	if cfg.MQTTBroker != "" {
		pub := mqttadapter.NewPublisher(cfg, logger)
		reporters = append(reporters, pub)
		closers = append(closers, namedCloser{"mqtt publisher", pub})
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, closers, err
		}
		reporters = append(reporters, store)
		closers = append(closers, namedCloser{"sqlite store", store})
	}
	return reporters, closers, nil
}

type namedCloser struct {
	name string
	io.Closer
}

func closeAll(closers []namedCloser, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error(c.name+" close error", "error", err)
		}
	}
}

func writeMetrics(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		return err
	}
	logger.Info("metrics written", "path", cfg.MetricsFile)
	return nil
}
