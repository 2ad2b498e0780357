package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"noise-monitor/internal/auth"
	"noise-monitor/internal/logging"
)

type config struct {
	mode         string
	baseURL      string
	broker       string
	deviceID     string
	interval     time.Duration
	count        int
	high         bool
	ingestSecret string
}

type reading struct {
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
	Estado    string `json:"estado"`
	NivelDB   string `json:"nivel_dB"`
	Vibracion string `json:"vibracion_ms2"`
	Fecha     string `json:"fecha"`
}

type sender func(ctx context.Context, r reading) error

func main() {
	cfg := parseConfig()
	logging.Init(envOrDefault("LOG_LEVEL", "info"))
	logger := logging.WithComponent("simulator")

	if cfg.deviceID == "" {
		logger.Fatal().Msg("device-id is required")
	}
	if cfg.interval <= 0 {
		logger.Fatal().Msg("interval must be > 0")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var send sender
	switch cfg.mode {
	case "http":
		send = httpSender(cfg)
	case "mqtt":
		client := mqtt.NewClient(mqtt.NewClientOptions().
			AddBroker(cfg.broker).
			SetClientID(fmt.Sprintf("noise-sim-%s", cfg.deviceID)))
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Fatal().Err(token.Error()).Str("broker", cfg.broker).Msg("mqtt connect error")
		}
		defer client.Disconnect(250)
		send = mqttSender(client)
	default:
		logger.Fatal().Str("mode", cfg.mode).Msg("mode must be http or mqtt")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	sent := 0
	for {
		r := generate(rng, cfg.deviceID, time.Now(), cfg.high)
		if err := send(ctx, r); err != nil {
			logger.Warn().Err(err).Int64("timestamp", r.Timestamp).Msg("send failed")
		} else {
			logger.Info().Int64("timestamp", r.Timestamp).Str("nivel_dB", r.NivelDB).Str("estado", r.Estado).Msg("reading sent")
		}
		sent++
		if cfg.count > 0 && sent >= cfg.count {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.mode, "mode", envOrDefault("SIM_MODE", "http"), "transport: http or mqtt")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8080"), "API base URL for http mode")
	flag.StringVar(&cfg.broker, "broker", envOrDefault("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker for mqtt mode")
	flag.StringVar(&cfg.deviceID, "device-id", envOrDefault("DEVICE_ID", "sonometro-01"), "device id")
	flag.DurationVar(&cfg.interval, "interval", envOrDuration("SIM_INTERVAL", 3*time.Second), "publish interval")
	flag.IntVar(&cfg.count, "count", envOrInt("SIM_COUNT", 0), "readings to send; 0 runs until interrupted")
	flag.BoolVar(&cfg.high, "high", false, "emit only readings above the default alert threshold")
	flag.StringVar(&cfg.ingestSecret, "ingest-secret", envOrDefault("INGEST_HMAC_SECRET", ""), "HMAC secret for signed http ingest")
	flag.Parse()
	return cfg
}

// generate produces one reading. Noise spans 50-90 dB and vibration 1.0-3.5
// m/s2; high mode keeps noise within 71-90 dB.
func generate(rng *rand.Rand, deviceID string, now time.Time, high bool) reading {
	noise := 50 + rng.Float64()*40
	if high {
		noise = 71 + rng.Float64()*19
	}
	vibration := 1.0 + rng.Float64()*2.5
	noise = math.Round(noise*100) / 100
	vibration = math.Round(vibration*10000) / 10000

	estado := "Verde"
	switch {
	case noise > 85 || vibration > 3.0:
		estado = "Rojo"
	case noise > 70 || vibration > 2.0:
		estado = "Amarillo"
	}

	return reading{
		DeviceID:  deviceID,
		Timestamp: now.Unix(),
		Estado:    estado,
		NivelDB:   fmt.Sprintf("%.2f dB", noise),
		Vibracion: fmt.Sprintf("%.4f m/s²", vibration),
		Fecha:     now.Format("03:04:05 PM 02/01/2006"),
	}
}

func httpSender(cfg config) sender {
	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimRight(cfg.baseURL, "/") + "/ingest/readings/"
	return func(ctx context.Context, r reading) error {
		body, err := json.Marshal(r)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.ingestSecret != "" {
			ts := strconv.FormatInt(time.Now().Unix(), 10)
			req.Header.Set("X-Ingest-Timestamp", ts)
			req.Header.Set("X-Ingest-Signature", auth.SignIngest([]byte(cfg.ingestSecret), ts, body))
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("ingest status %d", resp.StatusCode)
		}
		return nil
	}
}

func mqttSender(client mqtt.Client) sender {
	return func(_ context.Context, r reading) error {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("mediciones/%s/%d", r.DeviceID, r.Timestamp)
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	}
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
