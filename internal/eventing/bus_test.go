package eventing

import (
	"context"
	"errors"
	"testing"
)

type sampleEvent struct {
	Value int
}

func TestInMemoryBusPublishOrderAndFirstError(t *testing.T) {
	bus := NewInMemoryBus()
	var calls []string
	boom := errors.New("boom")
	bus.Subscribe(EventTypeOf[sampleEvent](), func(_ context.Context, _ any) error {
		calls = append(calls, "first")
		return boom
	})
	bus.Subscribe(EventTypeOf[sampleEvent](), func(_ context.Context, _ any) error {
		calls = append(calls, "second")
		return errors.New("ignored")
	})

	err := bus.Publish(context.Background(), sampleEvent{Value: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestInMemoryBusNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestSubscribeTypedAcceptsPointer(t *testing.T) {
	bus := NewInMemoryBus()
	var got int
	SubscribeTyped(bus, func(_ context.Context, evt sampleEvent) error {
		got += evt.Value
		return nil
	})
	if err := bus.Publish(context.Background(), sampleEvent{Value: 2}); err != nil {
		t.Fatalf("publish value: %v", err)
	}
	if err := bus.Publish(context.Background(), &sampleEvent{Value: 3}); err != nil {
		t.Fatalf("publish pointer: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestNewEventIDUnique(t *testing.T) {
	a, b := NewEventID(), NewEventID()
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q %q", a, b)
	}
}
