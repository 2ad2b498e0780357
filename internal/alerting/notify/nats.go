package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
)

// DefaultSubjectPrefix prefixes the per-device alert subject.
const DefaultSubjectPrefix = "alerts.noise"

// MessagePublisher is the subset of *nats.Conn used for publishing.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes fired alerts as JSON on alerts.noise.<device>.
type NATSPublisher struct {
	conn   MessagePublisher
	prefix string
}

// NewNATSPublisher constructs a publisher.
func NewNATSPublisher(conn MessagePublisher, prefix string) (*NATSPublisher, error) {
	if conn == nil {
		return nil, errors.New("nats publisher: nil connection")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject for a device.
func (p *NATSPublisher) Subject(deviceID string) string {
	return p.prefix + "." + deviceID
}

// Notify publishes the alert.
func (p *NATSPublisher) Notify(_ context.Context, alert alerting.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(alert.DeviceID), payload)
}

// ConnectNATS dials a NATS server with reconnect logging.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("nats: empty url")
	}
	return nats.Connect(url,
		nats.Name("noise-monitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info().Str("url", conn.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}
