package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/traffic-congestion/internal/config"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per dataset summary to a Kafka topic.
// It implements pipeline.Reporter.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured summary topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSummaryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the reporter in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Report serializes every summary of c and publishes them in a single
// WriteMessages call. Failed datasets produce no message.
func (w *Writer) Report(ctx context.Context, c domain.Comparison) error {
	if len(c.Summaries) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(c.Summaries))
	for i := range c.Summaries {
		msg, err := serializeToMessage(c.GeneratedAt, c.Summaries[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish summaries: %w", err)
	}
	w.logger.Info("summaries published to kafka", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// SummaryMessage is the JSON value of each published message.
type SummaryMessage struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     domain.DatasetSummary `json:"summary"`
}

// serializeToMessage marshals a DatasetSummary into a Kafka message keyed by dataset.
func serializeToMessage(generatedAt time.Time, s domain.DatasetSummary) (kafkago.Message, error) {
	data, err := json.Marshal(SummaryMessage{GeneratedAt: generatedAt, Summary: s})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize summary %s: %w", s.Dataset, err)
	}
	return kafkago.Message{
		Key:   []byte(s.Dataset),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(s.Dataset)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
