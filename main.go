package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alertapp "noise-monitor/internal/alerting/application"
	alerting "noise-monitor/internal/alerting/domain"
	latchmemory "noise-monitor/internal/alerting/infrastructure/memory"
	latchpostgres "noise-monitor/internal/alerting/infrastructure/postgres"
	alertinterfaces "noise-monitor/internal/alerting/interfaces"
	alerthttp "noise-monitor/internal/alerting/interfaces/http"
	"noise-monitor/internal/alerting/notify"
	"noise-monitor/internal/auth"
	"noise-monitor/internal/config"
	"noise-monitor/internal/eventing"
	"noise-monitor/internal/logging"
	"noise-monitor/internal/observability/metrics"
	readingapp "noise-monitor/internal/readings/application"
	readings "noise-monitor/internal/readings/domain"
	readingmemory "noise-monitor/internal/readings/infrastructure/memory"
	readingpostgres "noise-monitor/internal/readings/infrastructure/postgres"
	readinghttp "noise-monitor/internal/readings/interfaces/http"
	readingkafka "noise-monitor/internal/readings/interfaces/kafka"
	readingmqtt "noise-monitor/internal/readings/interfaces/mqtt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("config error")
	}
	logging.Init(cfg.LogLevel)
	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db           *sql.DB
		readingStore readings.ReadingStore
		latchStore   alerting.LatchStore
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		readingStore = readingmemory.NewReadingRepository()
		latchStore = latchmemory.NewLatchRepository()
		logger.Warn().Msg("using in-memory stores; data is lost on restart")
	default:
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db open error")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("db ping error")
		}
		readingStore = readingpostgres.NewReadingRepository(db)
		latchStore = latchpostgres.NewLatchRepository(db)
	}

	metrics.Init(db, logging.WithComponent("metrics"))

	broker := alerthttp.NewSSEBroker()
	notifier, natsConn := buildNotifier(cfg, broker)
	if natsConn != nil {
		defer natsConn.Close()
	}

	latchMode, _ := alerting.ParseLatchMode(cfg.Alerting.LatchMode)
	evaluator, err := alertapp.NewEvaluator(readingStore, latchStore,
		alertapp.WithThreshold(cfg.Alerting.ThresholdDB),
		alertapp.WithWindow(cfg.Alerting.Window),
		alertapp.WithLatchMode(latchMode),
		alertapp.WithNotifier(notifier),
		alertapp.WithLogger(logging.WithComponent("evaluator")),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("evaluator init error")
	}

	bus := eventing.NewInMemoryBus()
	trigger, err := alertinterfaces.NewReadingWrittenConsumer(evaluator, logging.WithComponent("trigger"))
	if err != nil {
		logger.Fatal().Err(err).Msg("trigger init error")
	}
	trigger.Register(bus)

	ingest, err := readingapp.NewIngestService(readingStore, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingest init error")
	}

	if cfg.Retention > 0 {
		pruner, err := readingapp.NewPruner(readingStore, ingest, cfg.Retention, cfg.PruneInterval, logging.WithComponent("pruner"))
		if err != nil {
			logger.Fatal().Err(err).Msg("pruner init error")
		}
		go pruner.Start(ctx)
	}

	if cfg.MQTT.Broker != "" {
		sub, err := readingmqtt.NewSubscriber(readingmqtt.Config{Broker: cfg.MQTT.Broker, Topic: cfg.MQTT.Topic}, ingest, logging.WithComponent("mqtt"))
		if err != nil {
			logger.Fatal().Err(err).Msg("mqtt init error")
		}
		if err := sub.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("mqtt connect error")
		}
		defer sub.Close()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := readingkafka.NewConsumer(readingkafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, ingest, logging.WithComponent("kafka"))
		if err != nil {
			logger.Fatal().Err(err).Msg("kafka init error")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
	}

	readingHandler, err := readinghttp.NewHandler(ingest, readingStore, logging.WithComponent("readings-http"))
	if err != nil {
		logger.Fatal().Err(err).Msg("readings handler error")
	}
	alertHandler, err := alerthttp.NewHandler(latchStore, broker, logging.WithComponent("alerts-http"))
	if err != nil {
		logger.Fatal().Err(err).Msg("alerts handler error")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logging.WithComponent("http")))
	router.Use(middleware.Recoverer)
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
		router.Use(auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap)
	} else {
		logger.Warn().Msg("AUTH_JWT_SECRET not set; dashboard API is unauthenticated")
	}

	var ingestRoutes http.Handler = readingHandler.IngestRoutes()
	if cfg.IngestSecret != "" {
		ingestRoutes = auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), cfg.IngestSkew).Wrap(ingestRoutes)
	}
	router.Mount("/ingest/readings", ingestRoutes)
	router.Mount("/api/v1/devices", readingHandler.DeviceRoutes())
	router.Mount("/api/v1/alerts", alertHandler.Routes())
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("backend", cfg.StoreBackend).
		Float64("threshold_db", cfg.Alerting.ThresholdDB).
		Dur("window", cfg.Alerting.Window).
		Str("latch_mode", string(latchMode)).
		Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server error")
	}
	logger.Info().Msg("shutdown complete")
}

// buildNotifier assembles every configured alert channel. The SSE broker is
// always attached so dashboards see fired alerts live.
func buildNotifier(cfg config.Config, broker *alerthttp.SSEBroker) (*notify.MultiNotifier, *nats.Conn) {
	logger := logging.WithComponent("notify")
	multi := notify.NewMultiNotifier(logger)

	var sendGridOpts []notify.SendGridOption
	if cfg.Notify.SendGridURL != "" {
		sendGridOpts = append(sendGridOpts, notify.WithSendGridBaseURL(cfg.Notify.SendGridURL))
	}
	mailer := notify.NewSendGridMailer(cfg.Notify.SendGridAPIKey, cfg.Notify.Timeout, sendGridOpts...)
	email, err := notify.NewEmailNotifier(mailer, cfg.Notify.From, cfg.Notify.To, notify.WithEmailLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("email notifier error")
	}
	multi.Add("email", email)

	if cfg.Notify.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.Notify.WebhookURL, notify.WithHTTPClient(&http.Client{Timeout: cfg.Notify.Timeout}))
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook channel error")
		}
		webhook, err := notify.NewChannelNotifier(channel, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook notifier error")
		}
		multi.Add("webhook", webhook)
	}

	var conn *nats.Conn
	if cfg.Notify.NATSURL != "" {
		conn, err = notify.ConnectNATS(cfg.Notify.NATSURL, logger)
		if err != nil {
			logger.Error().Err(err).Str("url", cfg.Notify.NATSURL).Msg("nats connect error; alerts will not be published")
		} else {
			publisher, err := notify.NewNATSPublisher(conn, notify.DefaultSubjectPrefix)
			if err != nil {
				logger.Fatal().Err(err).Msg("nats publisher error")
			}
			multi.Add("nats", publisher)
		}
	}

	multi.Add("sse", broker)
	logger.Info().Int("channels", multi.Len()).Msg("alert notifier ready")
	return multi, conn
}
