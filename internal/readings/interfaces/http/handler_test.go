package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"noise-monitor/internal/eventing"
	readingapp "noise-monitor/internal/readings/application"
	"noise-monitor/internal/readings/application/events"
	"noise-monitor/internal/readings/infrastructure/memory"
	"noise-monitor/internal/readings/interfaces"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type eventLog struct {
	mu     sync.Mutex
	events []events.ReadingWritten
}

func (l *eventLog) record(_ context.Context, evt events.ReadingWritten) error {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
	return nil
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func newTestHandler(t *testing.T) (*Handler, *eventLog) {
	t.Helper()
	store := memory.NewReadingRepository()
	bus := eventing.NewInMemoryBus()
	log := &eventLog{}
	eventing.SubscribeTyped(bus, log.record)
	ingest, err := readingapp.NewIngestService(store, bus, readingapp.WithClock(fixedClock{now: time.Unix(1700000500, 0)}))
	if err != nil {
		t.Fatalf("new ingest: %v", err)
	}
	handler, err := NewHandler(ingest, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, log
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.IngestRoutes().ServeHTTP(rec, req)
	return rec
}

func TestIngestSingleReadingPublishesOnce(t *testing.T) {
	h, log := newTestHandler(t)
	rec := post(t, h, `{"deviceId":"node-1","timestamp":"1700000000","estado":"Amarillo","nivel_dB":"70 dB"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stored != 1 || resp.Keys[0] != "1700000000" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if log.len() != 1 {
		t.Fatalf("expected one ReadingWritten, got %d", log.len())
	}
}

func TestIngestBatchAndServerTimestamp(t *testing.T) {
	h, log := newTestHandler(t)
	rec := post(t, h, `{"readings":[
		{"deviceId":"node-1","timestamp":1700000001,"nivel_dB":"70 dB"},
		{"device_id":"node-2","noise_level":"66 dB","status":"yellow"}
	]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Stored != 2 || resp.Keys[1] != "1700000500" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if log.len() != 2 {
		t.Fatalf("expected two events, got %d", log.len())
	}
}

func TestIngestRejectsInvalidPayloads(t *testing.T) {
	h, log := newTestHandler(t)
	if rec := post(t, h, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
	if rec := post(t, h, `{"timestamp":"1700000000"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing device, got %d", rec.Code)
	}
	if rec := post(t, h, `{"deviceId":"a/b","timestamp":"1700000000"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid device, got %d", rec.Code)
	}
	if rec := post(t, h, `{"deviceId":"node-1","timestamp":"soon"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid timestamp, got %d", rec.Code)
	}
	if log.len() != 0 {
		t.Fatalf("expected no events for rejected payloads")
	}
}

func TestDeleteReading(t *testing.T) {
	h, log := newTestHandler(t)
	post(t, h, `{"deviceId":"node-1","timestamp":"1700000000","nivel_dB":"70 dB"}`)

	del := func() int {
		rec := httptest.NewRecorder()
		h.IngestRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/node-1/1700000000", nil))
		return rec.Code
	}
	if code := del(); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := del(); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if log.len() != 2 {
		t.Fatalf("expected write and delete events, got %d", log.len())
	}
}

func TestDeviceFeedAndExports(t *testing.T) {
	h, _ := newTestHandler(t)
	post(t, h, `{"readings":[
		{"deviceId":"node-1","timestamp":"1700000000","estado":"Verde","nivel_dB":"50 dB"},
		{"deviceId":"node-1","timestamp":"1700000001","estado":"Rojo","nivel_dB":"80.5 dB","vibracion_ms2":"0.4 m/s2"}
	]}`)
	routes := h.DeviceRoutes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var devices []string
	_ = json.NewDecoder(rec.Body).Decode(&devices)
	if len(devices) != 1 || devices[0] != "node-1" {
		t.Fatalf("unexpected devices %v", devices)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node-1/readings?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rows []interfaces.ProcessedMeasurement
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "1700000001" || rows[0].Noise != 80.5 || rows[0].Status != "Rojo" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node-1/readings?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node-1/readings/export.pdf", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/node-1/readings/export.xlsx", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), "node-1-readings.xlsx") {
		t.Fatalf("unexpected xlsx response %d %s", rec.Code, rec.Header().Get("Content-Disposition"))
	}
}
