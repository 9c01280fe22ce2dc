//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/traffic-congestion/internal/adapter/dataset"
	"github.com/couchcryptid/traffic-congestion/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-congestion/internal/config"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
	"github.com/couchcryptid/traffic-congestion/internal/observability"
	"github.com/couchcryptid/traffic-congestion/internal/pipeline"
)

const testSummaryTopic = "test-summaries"

const sampleCSV = `timestamp,773869,767541
2012-03-01 07:00:00,12.5,64
2012-03-01 07:05:00,15,66
2012-03-01 07:10:00,,63
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("traffic-congestion-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPipelinePublishesSummaries runs the full pipeline over a small CSV
// dataset and a missing one, then reads the summary back from Kafka.
func TestPipelinePublishesSummaries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSummaryTopic)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sample.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o600))

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaSummaryTopic: testSummaryTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	rule := domain.DefaultRule()
	datasets := []domain.Dataset{
		{Name: "SAMPLE", Path: csvPath, Interval: domain.DefaultInterval},
		{Name: "GONE", Path: filepath.Join(dir, "gone.h5"), Interval: domain.DefaultInterval},
	}
	p := pipeline.New(
		dataset.NewLoader(rule, discardLogger()),
		pipeline.NewAnalyzer(rule, 5, 10, dataset.LoadLocations, nil, discardLogger()),
		[]pipeline.Reporter{writer},
		datasets, rule.Threshold, discardLogger(), observability.NewMetricsForTesting(),
	)

	c, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, c.Summaries, 1)
	require.Len(t, c.Failures, 1)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSummaryTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from summary topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "SAMPLE", string(msg.Key))
	assert.Equal(t, "SAMPLE", headers["dataset"])
	_, err = time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	var got kafka.SummaryMessage
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "SAMPLE", got.Summary.Dataset)
	assert.Equal(t, 2, got.Summary.NumSensors)
	assert.Equal(t, 5, got.Summary.Valid)
	assert.Equal(t, 1, got.Summary.Missing)
	assert.InDelta(t, 0.4, got.Summary.OverallRate, 1e-9)
	require.NotNil(t, got.Summary.MaxSensor)
	assert.Equal(t, "773869", got.Summary.MaxSensor.SensorID)
}
