package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponentAddsField(t *testing.T) {
	t.Setenv("ENV", "")
	var buf bytes.Buffer
	InitWithWriter("debug", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	buf.Reset()
	log := WithComponent("alerting")
	log.Info().Str("device_id", "node-1").Msg("evaluated")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "alerting" || entry["device_id"] != "node-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("ENV", "")
	var buf bytes.Buffer
	InitWithWriter("loud", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Fatalf("expected init line, got %s", buf.String())
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["path"] != "/healthz" || entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected entry %v", entry)
	}
}
