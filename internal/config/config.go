package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	alerting "noise-monitor/internal/alerting/domain"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr     string `yaml:"http_addr"`
	DatabaseURL  string `yaml:"database_url"`
	StoreBackend string `yaml:"store_backend"`
	LogLevel     string `yaml:"log_level"`

	Alerting Alerting `yaml:"alerting"`
	Notify   Notify   `yaml:"notify"`
	MQTT     MQTT     `yaml:"mqtt"`
	Kafka    Kafka    `yaml:"kafka"`

	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`

	JWTSecret    string        `yaml:"jwt_secret"`
	IngestSecret string        `yaml:"ingest_secret"`
	IngestSkew   time.Duration `yaml:"ingest_skew"`
}

// Alerting holds evaluator settings.
type Alerting struct {
	ThresholdDB float64       `yaml:"threshold_db"`
	Window      time.Duration `yaml:"window"`
	LatchMode   string        `yaml:"latch_mode"`
}

// Notify holds notification channel settings.
type Notify struct {
	From           string        `yaml:"from"`
	To             string        `yaml:"to"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key"`
	SendGridURL    string        `yaml:"sendgrid_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	WebhookURL     string        `yaml:"webhook_url"`
	NATSURL        string        `yaml:"nats_url"`
}

// MQTT holds subscriber settings.
type MQTT struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// Kafka holds consumer settings.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:     ":8080",
		StoreBackend: BackendPostgres,
		LogLevel:     "info",
		Alerting: Alerting{
			ThresholdDB: 65.0,
			Window:      60 * time.Second,
			LatchMode:   string(alerting.LatchModeCompareAndSet),
		},
		Notify: Notify{
			From:    "noreply@monitoreo-ambiental.com",
			Timeout: 10 * time.Second,
		},
		MQTT:          MQTT{Topic: "mediciones/+/+"},
		Kafka:         Kafka{Topic: "readings", GroupID: "noise-monitor"},
		PruneInterval: time.Hour,
		IngestSkew:    5 * time.Minute,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by NOISE_CONFIG, then environment variables. Later sources win.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("NOISE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	env := envReader{getenv: getenv}
	env.str("HTTP_ADDR", &cfg.HTTPAddr)
	env.str("DATABASE_URL", &cfg.DatabaseURL)
	env.str("STORE_BACKEND", &cfg.StoreBackend)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.float("NOISE_THRESHOLD_DB", &cfg.Alerting.ThresholdDB)
	env.duration("SUSTAINED_WINDOW", &cfg.Alerting.Window)
	env.str("LATCH_MODE", &cfg.Alerting.LatchMode)
	env.str("ALERT_FROM", &cfg.Notify.From)
	env.str("ALERT_TO", &cfg.Notify.To)
	env.str("SENDGRID_API_KEY", &cfg.Notify.SendGridAPIKey)
	env.str("SENDGRID_BASE_URL", &cfg.Notify.SendGridURL)
	env.duration("NOTIFY_TIMEOUT", &cfg.Notify.Timeout)
	env.str("ALERT_WEBHOOK_URL", &cfg.Notify.WebhookURL)
	env.str("NATS_URL", &cfg.Notify.NATSURL)
	env.str("MQTT_BROKER", &cfg.MQTT.Broker)
	env.str("MQTT_TOPIC", &cfg.MQTT.Topic)
	env.csv("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	env.str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	env.str("KAFKA_GROUP", &cfg.Kafka.GroupID)
	env.duration("RETENTION", &cfg.Retention)
	env.duration("PRUNE_INTERVAL", &cfg.PruneInterval)
	env.str("AUTH_JWT_SECRET", &cfg.JWTSecret)
	env.str("INGEST_HMAC_SECRET", &cfg.IngestSecret)
	env.duration("INGEST_MAX_SKEW", &cfg.IngestSkew)
	if env.err != nil {
		return cfg, env.err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Alerting.ThresholdDB <= 0 {
		return errors.New("config: NOISE_THRESHOLD_DB must be positive")
	}
	if c.Alerting.Window < time.Second {
		return errors.New("config: SUSTAINED_WINDOW must be at least 1s")
	}
	if _, err := alerting.ParseLatchMode(c.Alerting.LatchMode); err != nil {
		return fmt.Errorf("config: LATCH_MODE %q: %w", c.Alerting.LatchMode, err)
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Retention < 0 {
		return errors.New("config: RETENTION must not be negative")
	}
	if c.Retention > 0 && c.Retention < c.Alerting.Window {
		return errors.New("config: RETENTION must cover the sustained window")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(e.getenv(key))
	return value, value != ""
}

func (e *envReader) str(key string, dst *string) {
	if value, ok := e.lookup(key); ok {
		*dst = value
	}
}

func (e *envReader) float(key string, dst *float64) {
	value, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = parsed
}

func (e *envReader) duration(key string, dst *time.Duration) {
	value, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = parsed
}

func (e *envReader) csv(key string, dst *[]string) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
