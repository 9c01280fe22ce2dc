// Package mqtt publishes dataset summaries as retained MQTT messages.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/traffic-congestion/internal/config"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

// client is the subset of mqtt.Client the publisher needs.
type client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends one retained message per dataset summary to
// <prefix>/<dataset>. It implements pipeline.Reporter.
type Publisher struct {
	client client
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a publisher for the configured broker. The
// connection is opened on the first Report.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return &Publisher{
		client: mqtt.NewClient(opts),
		prefix: cfg.MQTTTopicPrefix,
		logger: logger,
	}
}

// Name identifies the reporter in logs and metrics.
func (p *Publisher) Name() string { return "mqtt" }

// Report publishes every summary of c, stopping at the first failure.
func (p *Publisher) Report(ctx context.Context, c domain.Comparison) error {
	if len(c.Summaries) == 0 {
		return nil
	}
	if err := p.connect(ctx); err != nil {
		return err
	}
	for _, s := range c.Summaries {
		if err := p.publish(ctx, c.GeneratedAt, s); err != nil {
			return err
		}
	}
	return nil
}

// connect waits for the broker connection while honoring ctx.
func (p *Publisher) connect(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	if err := wait(ctx, token); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, generatedAt time.Time, s domain.DatasetSummary) error {
	topic := Topic(p.prefix, s.Dataset)
	data, err := json.Marshal(SummaryMessage{GeneratedAt: generatedAt, Summary: s})
	if err != nil {
		return fmt.Errorf("marshal summary %s: %w", s.Dataset, err)
	}

	token := p.client.Publish(topic, qos, true, data)
	if err := wait(ctx, token); err != nil {
		p.logger.Error("failed to publish summary", "topic", topic, "error", err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("published summary", "topic", topic, "dataset", s.Dataset)
	return nil
}

// Close disconnects from the broker, letting in-flight work finish.
func (p *Publisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

// SummaryMessage is the retained payload published per dataset.
type SummaryMessage struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     domain.DatasetSummary `json:"summary"`
}

// Topic builds the topic for a dataset. Characters MQTT reserves for
// wildcards and levels are replaced in the dataset segment.
func Topic(prefix, dataset string) string {
	segment := strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(dataset)
	if prefix == "" {
		return segment
	}
	return prefix + "/" + segment
}

var errTimeout = errors.New("timed out")

// wait blocks until token completes, ctx ends, or publishTimeout passes.
func wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTimeout
	}
}
