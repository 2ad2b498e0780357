package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"noise-monitor/internal/observability/metrics"
	readings "noise-monitor/internal/readings/domain"
	"noise-monitor/internal/readings/interfaces"
)

const (
	source = "mqtt"
	// DefaultTopic matches mediciones/{deviceId}/{timestamp}.
	DefaultTopic = "mediciones/+/+"
)

// Writer stores one measurement.
type Writer interface {
	Write(ctx context.Context, m readings.Measurement) (readings.Measurement, error)
}

// Config holds broker settings.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Subscriber writes readings published on the device topic tree.
type Subscriber struct {
	cfg    Config
	writer Writer
	logger zerolog.Logger
	client paho.Client
}

// NewSubscriber constructs a subscriber.
func NewSubscriber(cfg Config, writer Writer, logger zerolog.Logger) (*Subscriber, error) {
	if writer == nil {
		return nil, errors.New("mqtt subscriber: nil writer")
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt subscriber: empty broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("noise-monitor-%d", time.Now().UnixNano())
	}
	return &Subscriber{cfg: cfg, writer: writer, logger: logger}, nil
}

// Start connects and subscribes. Messages are handled until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn().Err(err).Msg("mqtt connection lost")
		})
	opts.SetOnConnectHandler(func(c paho.Client) {
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ paho.Client, msg paho.Message) {
			if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
				s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt reading rejected")
			}
		})
		if token.Wait() && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Str("topic", s.cfg.Topic).Msg("mqtt subscribe failed")
			return
		}
		s.logger.Info().Str("broker", s.cfg.Broker).Str("topic", s.cfg.Topic).Msg("mqtt subscribed")
	})

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return token.Error()
	}
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Disconnect(250)
}

// HandleMessage decodes one message. Device id and key come from the last two
// topic levels when present.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	deviceID, key := splitTopic(topic)
	var p interfaces.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		return fmt.Errorf("mqtt: decode payload: %w", err)
	}
	m, err := p.ToMeasurement(deviceID, key)
	if err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		return err
	}
	if _, err := s.writer.Write(ctx, m); err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		return err
	}
	metrics.IncIngest(source, metrics.ResultSuccess)
	return nil
}

func splitTopic(topic string) (string, string) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	switch {
	case len(parts) >= 3:
		return parts[len(parts)-2], parts[len(parts)-1]
	case len(parts) == 2:
		return parts[1], ""
	default:
		return "", ""
	}
}
