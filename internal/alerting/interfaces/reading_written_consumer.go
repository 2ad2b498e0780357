package interfaces

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	alertapp "noise-monitor/internal/alerting/application"
	"noise-monitor/internal/eventing"
	"noise-monitor/internal/readings/application/events"
)

// ReadingPathPattern is the location whose writes drive the evaluator.
const ReadingPathPattern = "mediciones/{deviceId}/{timestamp}"

// ReadingWrittenConsumer binds reading writes to the evaluator.
type ReadingWrittenConsumer struct {
	app    *alertapp.Evaluator
	logger zerolog.Logger
}

// NewReadingWrittenConsumer constructs a consumer.
func NewReadingWrittenConsumer(app *alertapp.Evaluator, logger zerolog.Logger) (*ReadingWrittenConsumer, error) {
	if app == nil {
		return nil, errors.New("alerting consumer: nil evaluator")
	}
	return &ReadingWrittenConsumer{app: app, logger: logger}, nil
}

// Register subscribes the consumer as the handler for ReadingWritten.
func (c *ReadingWrittenConsumer) Register(bus eventing.EventBus) {
	eventing.SubscribeTyped(bus, c.Consume)
	c.logger.Info().Str("path", ReadingPathPattern).Msg("reading trigger registered")
}

// Consume handles a reading written event.
func (c *ReadingWrittenConsumer) Consume(ctx context.Context, event events.ReadingWritten) error {
	_, err := c.app.HandleReadingWritten(ctx, event)
	if err != nil {
		c.logger.Error().Err(err).Str("device_id", event.DeviceID).Int64("key", event.Key).Msg("reading evaluation failed")
	}
	return err
}
