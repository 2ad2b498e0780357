package application

import (
	"context"
	"errors"
	"time"

	"noise-monitor/internal/eventing"
	"noise-monitor/internal/readings/application/events"
	readings "noise-monitor/internal/readings/domain"
)

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// IngestService writes readings and raises one ReadingWritten per write.
type IngestService struct {
	store     readings.ReadingStore
	publisher Publisher
	clock     Clock
}

// IngestOption customizes the ingest service.
type IngestOption func(*IngestService)

// WithClock assigns a clock.
func WithClock(clock Clock) IngestOption {
	return func(s *IngestService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewIngestService constructs an ingest service.
func NewIngestService(store readings.ReadingStore, publisher Publisher, opts ...IngestOption) (*IngestService, error) {
	if store == nil {
		return nil, errors.New("ingest: nil reading store")
	}
	if publisher == nil {
		return nil, errors.New("ingest: nil publisher")
	}
	s := &IngestService{store: store, publisher: publisher, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write stores a measurement. A zero key is stamped with the current second.
func (s *IngestService) Write(ctx context.Context, m readings.Measurement) (readings.Measurement, error) {
	if s == nil {
		return m, errors.New("ingest: nil service")
	}
	if m.Key == 0 {
		m.Key = s.clock.Now().Unix()
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	before, err := s.store.Put(ctx, m)
	if err != nil {
		return m, err
	}
	after := m
	return m, s.publisher.Publish(ctx, events.ReadingWritten{
		EventID:    eventing.NewEventID(),
		DeviceID:   m.DeviceID,
		Key:        m.Key,
		Before:     before,
		After:      &after,
		OccurredAt: s.clock.Now().UTC(),
	})
}

// Delete removes a measurement. Deleting a missing entry raises no event.
func (s *IngestService) Delete(ctx context.Context, deviceID string, key int64) (bool, error) {
	if s == nil {
		return false, errors.New("ingest: nil service")
	}
	if deviceID == "" {
		return false, readings.ErrMissingDevice
	}
	before, err := s.store.Delete(ctx, deviceID, key)
	if err != nil {
		return false, err
	}
	if before == nil {
		return false, nil
	}
	return true, s.publisher.Publish(ctx, events.ReadingWritten{
		EventID:    eventing.NewEventID(),
		DeviceID:   deviceID,
		Key:        key,
		Before:     before,
		OccurredAt: s.clock.Now().UTC(),
	})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
