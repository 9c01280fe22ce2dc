package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	Rule            domain.Rule
	TopSensors      int
	HistogramBins   int
	Datasets        []domain.Dataset
	ChartPath       string
	MetricsFile     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers      []string
	KafkaSummaryTopic string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	SQLitePath string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// ServeMode reports whether the job should keep running behind an HTTP server.
func (c *Config) ServeMode() bool {
	return c.HTTPAddr != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	threshold, err := parsePositiveFloat("SPEED_THRESHOLD", domain.DefaultSpeedThreshold)
	if err != nil {
		return nil, err
	}
	maxSpeed, err := parsePositiveFloat("MAX_VALID_SPEED", domain.DefaultMaxValidSpeed)
	if err != nil {
		return nil, err
	}
	if maxSpeed <= threshold {
		return nil, errors.New("MAX_VALID_SPEED must exceed SPEED_THRESHOLD")
	}
	zeroMissing, err := parseBool("ZERO_SPEED_MISSING", false)
	if err != nil {
		return nil, err
	}

	topSensors, err := parsePositiveInt("TOP_SENSORS", domain.DefaultTopSensors)
	if err != nil {
		return nil, err
	}
	bins, err := parsePositiveInt("HISTOGRAM_BINS", domain.DefaultHistogramBins)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	datasets := domain.DefaultDatasets()
	if path := os.Getenv("DATASETS_FILE"); path != "" {
		datasets, err = LoadDatasets(path)
		if err != nil {
			return nil, err
		}
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		Rule: domain.Rule{
			Threshold:     threshold,
			MaxSpeed:      maxSpeed,
			ZeroIsMissing: zeroMissing,
		},
		TopSensors:      topSensors,
		HistogramBins:   bins,
		Datasets:        datasets,
		ChartPath:       envOrDefault("CHART_PATH", "congestion_comparison.png"),
		MetricsFile:     os.Getenv("METRICS_FILE"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:      parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "traffic-congestion-summaries"),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    envOrDefault("MQTT_CLIENT_ID", "traffic-congestion"),
		MQTTTopicPrefix: strings.TrimSuffix(envOrDefault("MQTT_TOPIC_PREFIX", "traffic/congestion"), "/"),

		SQLitePath: os.Getenv("SQLITE_PATH"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSummaryTopic == "" {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseList splits a comma-separated value, dropping blank entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parsePositiveFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", key, s)
	}
	return v, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, s)
	}
	return v, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
