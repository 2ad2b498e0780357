package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"noise-monitor/internal/observability/metrics"
	readings "noise-monitor/internal/readings/domain"
	"noise-monitor/internal/readings/interfaces"
)

const source = "kafka"

const maxRetryBackoff = 30 * time.Second

// ErrRejected marks a message that can never be stored. Rejected messages are
// committed and skipped; any other handling error is retried.
var ErrRejected = errors.New("kafka: message rejected")

// Writer stores one measurement.
type Writer interface {
	Write(ctx context.Context, m readings.Measurement) (readings.Measurement, error)
}

// Config holds consumer settings.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
	// RetryBackoff is the first delay before a failed write is retried. It
	// doubles per attempt up to 30s.
	RetryBackoff time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer writes readings consumed from a Kafka topic.
type Consumer struct {
	cfg    Config
	reader messageReader
	writer Writer
	logger zerolog.Logger
}

// NewConsumer builds a group reader for the readings topic.
func NewConsumer(cfg Config, writer Writer, logger zerolog.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, errors.New("kafka consumer: nil writer")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka consumer: empty topic")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer: empty group")
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(cfg, reader, writer, logger), nil
}

func newConsumer(cfg Config, reader messageReader, writer Writer, logger zerolog.Logger) *Consumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer{cfg: cfg, reader: reader, writer: writer, logger: logger}
}

// Close shuts down the reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed. A message is
// committed once stored or rejected. Write failures are retried with backoff
// and the message stays uncommitted until it succeeds.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Str("brokers", strings.Join(c.cfg.Brokers, ",")).
		Msg("kafka consumer started")
	defer c.logger.Info().Msg("kafka consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafkago.ErrGroupClosed) {
				return nil
			}
			c.logger.Error().Err(err).Msg("kafka fetch failed")
			continue
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			return err
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				c.logger.Error().Err(err).Msg("kafka commit failed")
			}
		}
		commitCancel()
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafkago.Message) error {
	backoff := c.cfg.RetryBackoff
	for {
		err := c.HandleMessage(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Int("partition", msg.Partition).Msg("kafka reading rejected")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Int64("offset", msg.Offset).Int("partition", msg.Partition).Dur("backoff", backoff).Msg("kafka reading write failed; retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

// HandleMessage decodes and writes one message. The message key, when set,
// is used as the device id fallback.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var p interfaces.Payload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		return fmt.Errorf("%w: decode payload: %v", ErrRejected, err)
	}
	if p.DeviceID == "" && p.DeviceIDAlt == "" {
		p.DeviceID = string(msg.Key)
	}
	m, err := p.ToMeasurement("", "")
	if err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if _, err := c.writer.Write(ctx, m); err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		if isInvalid(err) {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return err
	}
	metrics.IncIngest(source, metrics.ResultSuccess)
	return nil
}

func isInvalid(err error) bool {
	return errors.Is(err, readings.ErrMissingDevice) ||
		errors.Is(err, readings.ErrInvalidDevice) ||
		errors.Is(err, readings.ErrInvalidKey)
}
