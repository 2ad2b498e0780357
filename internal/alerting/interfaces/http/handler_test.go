package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
	latchmemory "noise-monitor/internal/alerting/infrastructure/memory"
)

func newTestHandler(t *testing.T) (*Handler, *latchmemory.LatchRepository, *SSEBroker) {
	t.Helper()
	latches := latchmemory.NewLatchRepository()
	broker := NewSSEBroker()
	handler, err := NewHandler(latches, broker, zerolog.Nop())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, latches, broker
}

func TestListAlerts(t *testing.T) {
	handler, latches, _ := newTestHandler(t)
	ctx := context.Background()
	_ = latches.Set(ctx, "node-2", false)
	_ = latches.Set(ctx, "node-1", true)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var states []alerting.LatchState
	if err := json.NewDecoder(rec.Body).Decode(&states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 2 || states[0].DeviceID != "node-1" || !states[0].Alerted || states[1].Alerted {
		t.Fatalf("unexpected states %+v", states)
	}
}

func TestGetAlertDefaultsToArmed(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node-9", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var state alerting.LatchState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.DeviceID != "node-9" || state.Alerted {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestStreamDeliversAlerts(t *testing.T) {
	handler, _, broker := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	if event, _ := readEvent(); event != "ready" {
		t.Fatalf("expected ready event, got %q", event)
	}
	if err := broker.Notify(ctx, alerting.Alert{DeviceID: "node-1", NoiseDB: 71}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	event, data := readEvent()
	if event != "alert" {
		t.Fatalf("expected alert event, got %q", event)
	}
	var alert alerting.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.DeviceID != "node-1" || alert.NoiseDB != 71 {
		t.Fatalf("unexpected alert %+v", alert)
	}
}
