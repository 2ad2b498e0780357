package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"STORE_BACKEND": "memory"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Alerting.ThresholdDB != 65 || cfg.Alerting.Window != time.Minute || cfg.Alerting.LatchMode != "cas" {
		t.Fatalf("unexpected alerting defaults %+v", cfg.Alerting)
	}
	if cfg.Notify.From != "noreply@monitoreo-ambiental.com" || cfg.Notify.Timeout != 10*time.Second {
		t.Fatalf("unexpected notify defaults %+v", cfg.Notify)
	}
	if cfg.Retention != 0 || cfg.PruneInterval != time.Hour {
		t.Fatalf("unexpected retention defaults %v %v", cfg.Retention, cfg.PruneInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"STORE_BACKEND":      "postgres",
		"DATABASE_URL":       "postgres://localhost/noise",
		"NOISE_THRESHOLD_DB": "70.5",
		"SUSTAINED_WINDOW":   "2m",
		"LATCH_MODE":         "notify-then-set",
		"KAFKA_BROKERS":      "k1:9092, k2:9092",
		"RETENTION":          "168h",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Alerting.ThresholdDB != 70.5 || cfg.Alerting.Window != 2*time.Minute || cfg.Alerting.LatchMode != "notify-then-set" {
		t.Fatalf("unexpected alerting %+v", cfg.Alerting)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Retention != 168*time.Hour {
		t.Fatalf("unexpected retention %v", cfg.Retention)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noise.yaml")
	yamlDoc := `
store_backend: memory
alerting:
  threshold_db: 80
  window: 30s
notify:
  to: ops@example.com
mqtt:
  broker: tcp://mqtt:1883
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := load(envMap(map[string]string{
		"NOISE_CONFIG":       path,
		"NOISE_THRESHOLD_DB": "75",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Alerting.ThresholdDB != 75 {
		t.Fatalf("expected env to override yaml threshold, got %v", cfg.Alerting.ThresholdDB)
	}
	if cfg.Alerting.Window != 30*time.Second || cfg.Notify.To != "ops@example.com" || cfg.MQTT.Broker != "tcp://mqtt:1883" {
		t.Fatalf("unexpected yaml values %+v", cfg)
	}
	if cfg.MQTT.Topic != "mediciones/+/+" {
		t.Fatalf("expected default topic to survive overlay, got %q", cfg.MQTT.Topic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"threshold": {"STORE_BACKEND": "memory", "NOISE_THRESHOLD_DB": "0"},
		"window":    {"STORE_BACKEND": "memory", "SUSTAINED_WINDOW": "0s"},
		"mode":      {"STORE_BACKEND": "memory", "LATCH_MODE": "sometimes"},
		"backend":   {"STORE_BACKEND": "firebase"},
		"dsn":       {"STORE_BACKEND": "postgres"},
		"retention": {"STORE_BACKEND": "memory", "RETENTION": "10s"},
		"parse":     {"STORE_BACKEND": "memory", "SUSTAINED_WINDOW": "sixty"},
	}
	for name, env := range cases {
		if _, err := load(envMap(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.HasPrefix(err.Error(), "config:") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}
