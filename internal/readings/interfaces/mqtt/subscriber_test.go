package mqtt

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	readings "noise-monitor/internal/readings/domain"
)

type recordingWriter struct {
	written []readings.Measurement
}

func (w *recordingWriter) Write(_ context.Context, m readings.Measurement) (readings.Measurement, error) {
	if err := m.Validate(); err != nil {
		return m, err
	}
	w.written = append(w.written, m)
	return m, nil
}

func TestHandleMessageUsesTopicIdentity(t *testing.T) {
	writer := &recordingWriter{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883"}, writer, zerolog.Nop())
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	payload := []byte(`{"estado":"Rojo","nivel_dB":"82 dB","vibracion_ms2":"0.8 m/s2"}`)
	if err := sub.HandleMessage(context.Background(), "mediciones/node-7/1700000000", payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.written) != 1 {
		t.Fatalf("expected one write")
	}
	m := writer.written[0]
	if m.DeviceID != "node-7" || m.Key != 1700000000 || m.Noise() != 82 {
		t.Fatalf("unexpected measurement %+v", m)
	}
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	writer := &recordingWriter{}
	sub, _ := NewSubscriber(Config{Broker: "tcp://localhost:1883"}, writer, zerolog.Nop())
	if err := sub.HandleMessage(context.Background(), "mediciones/node-7/1700000000", []byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := sub.HandleMessage(context.Background(), "mediciones/node-7/later", []byte(`{}`)); err == nil {
		t.Fatalf("expected key error")
	}
	if len(writer.written) != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestSplitTopic(t *testing.T) {
	device, key := splitTopic("mediciones/node-1/42")
	if device != "node-1" || key != "42" {
		t.Fatalf("unexpected split %q %q", device, key)
	}
	device, key = splitTopic("mediciones/node-1")
	if device != "node-1" || key != "" {
		t.Fatalf("unexpected split %q %q", device, key)
	}
}

func TestNewSubscriberRequiresBroker(t *testing.T) {
	if _, err := NewSubscriber(Config{}, &recordingWriter{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}
