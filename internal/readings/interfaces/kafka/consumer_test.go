package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	readings "noise-monitor/internal/readings/domain"
)

type recordingWriter struct {
	mu      sync.Mutex
	written []readings.Measurement
}

func (w *recordingWriter) Write(_ context.Context, m readings.Measurement) (readings.Measurement, error) {
	if err := m.Validate(); err != nil {
		return m, err
	}
	w.mu.Lock()
	w.written = append(w.written, m)
	w.mu.Unlock()
	return m, nil
}

type stubReader struct {
	messages  []kafkago.Message
	committed []int64
}

func (r *stubReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if len(r.messages) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func TestRunWritesAndCommits(t *testing.T) {
	reader := &stubReader{messages: []kafkago.Message{
		{Offset: 1, Value: []byte(`{"deviceId":"node-1","timestamp":"1700000000","nivel_dB":"70 dB"}`)},
		{Offset: 2, Value: []byte(`garbage`)},
		{Offset: 3, Key: []byte("node-2"), Value: []byte(`{"timestamp":1700000001,"noise_level":"66 dB"}`)},
	}}
	writer := &recordingWriter{}
	consumer := newConsumer(Config{Brokers: []string{"localhost:9092"}, Topic: "readings", GroupID: "g", PollTimeout: time.Second}, reader, writer, zerolog.Nop())

	if err := consumer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(writer.written) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writer.written))
	}
	if writer.written[1].DeviceID != "node-2" || writer.written[1].Key != 1700000001 {
		t.Fatalf("unexpected keyed write %+v", writer.written[1])
	}
	if len(reader.committed) != 3 {
		t.Fatalf("expected every message committed, got %v", reader.committed)
	}
}

type flakyWriter struct {
	failures int
	attempts int
	onFail   func()
	recordingWriter
}

func (w *flakyWriter) Write(ctx context.Context, m readings.Measurement) (readings.Measurement, error) {
	w.attempts++
	if w.failures < 0 || w.attempts <= w.failures {
		if w.onFail != nil {
			w.onFail()
		}
		return m, errors.New("dial tcp 127.0.0.1:5432: connection refused")
	}
	return w.recordingWriter.Write(ctx, m)
}

func TestRunDoesNotCommitUnstoredReading(t *testing.T) {
	reader := &stubReader{messages: []kafkago.Message{
		{Offset: 7, Value: []byte(`{"deviceId":"node-1","timestamp":"1700000000","nivel_dB":"70 dB"}`)},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writer := &flakyWriter{failures: -1}
	writer.onFail = func() {
		if writer.attempts == 3 {
			cancel()
		}
	}
	consumer := newConsumer(Config{Topic: "readings", GroupID: "g", RetryBackoff: time.Millisecond}, reader, writer, zerolog.Nop())

	err := consumer.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if writer.attempts != 3 {
		t.Fatalf("expected 3 write attempts, got %d", writer.attempts)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("expected nothing committed, got %v", reader.committed)
	}
}

func TestRunRetriesTransientWriteFailure(t *testing.T) {
	reader := &stubReader{messages: []kafkago.Message{
		{Offset: 7, Value: []byte(`{"deviceId":"node-1","timestamp":"1700000000","nivel_dB":"70 dB"}`)},
	}}
	writer := &flakyWriter{failures: 2}
	consumer := newConsumer(Config{Topic: "readings", GroupID: "g", RetryBackoff: time.Millisecond}, reader, writer, zerolog.Nop())

	if err := consumer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if writer.attempts != 3 || len(writer.written) != 1 {
		t.Fatalf("expected 3 attempts and 1 write, got %d/%d", writer.attempts, len(writer.written))
	}
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Fatalf("expected offset 7 committed once, got %v", reader.committed)
	}
}

func TestHandleMessageRejectsInvalidReading(t *testing.T) {
	consumer := newConsumer(Config{Topic: "readings", GroupID: "g"}, &stubReader{}, &recordingWriter{}, zerolog.Nop())
	err := consumer.HandleMessage(context.Background(), kafkago.Message{Value: []byte(`{"timestamp":"1700000000","nivel_dB":"70 dB"}`)})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection for missing device, got %v", err)
	}
}

func TestNewConsumerValidation(t *testing.T) {
	writer := &recordingWriter{}
	if _, err := NewConsumer(Config{Topic: "readings", GroupID: "g"}, writer, zerolog.Nop()); err == nil {
		t.Fatalf("expected broker error")
	}
	if _, err := NewConsumer(Config{Brokers: []string{"b"}, GroupID: "g"}, writer, zerolog.Nop()); err == nil {
		t.Fatalf("expected topic error")
	}
	if _, err := NewConsumer(Config{Brokers: []string{"b"}, Topic: "t"}, nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected writer error")
	}
}
