package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/booking"
	"github.com/alturos-health/scheduling/internal/config"
	"github.com/alturos-health/scheduling/internal/db"
	"github.com/alturos-health/scheduling/internal/dispatch"
	"github.com/alturos-health/scheduling/internal/events"
	"github.com/alturos-health/scheduling/internal/logger"
	"github.com/alturos-health/scheduling/internal/metrics"
	"github.com/alturos-health/scheduling/internal/notification"
	"github.com/alturos-health/scheduling/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("tick", cfg.ReminderTick))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal("amqp connection error", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()

		amqpPub, err := events.NewAMQPPublisher(conn, log)
		if err != nil {
			log.Fatal("amqp publisher error", zap.Error(err))
		}
		defer func() { _ = amqpPub.Close() }()
		pub = amqpPub
		log.Info("connected to RabbitMQ")
	}

	met := metrics.New(nil)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	// The worker has no live websocket sessions of its own; its emits go
	// straight to the durable store, and connected clients of the API
	// process pick them up on their next poll or reconnect.
	notifStore := notification.NewPgStore(pgPool)
	router := dispatch.NewRouter(notifStore, log, met)
	defer router.Close()

	repo := booking.NewPgRepository(pgPool)
	firings := reminder.NewPgFiringStore(pgPool)

	sched := reminder.NewScheduler(repo, firings, router, pub, cfg.ReminderTick, log,
		reminder.WithMetrics(met))
	sched.Run(rootCtx)
}
