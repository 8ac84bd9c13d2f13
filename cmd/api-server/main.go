package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/api"
	"github.com/alturos-health/scheduling/internal/booking"
	"github.com/alturos-health/scheduling/internal/config"
	"github.com/alturos-health/scheduling/internal/db"
	"github.com/alturos-health/scheduling/internal/dispatch"
	"github.com/alturos-health/scheduling/internal/events"
	"github.com/alturos-health/scheduling/internal/logger"
	"github.com/alturos-health/scheduling/internal/metrics"
	"github.com/alturos-health/scheduling/internal/notification"
	redisclient "github.com/alturos-health/scheduling/internal/redis"
)

var version = "dev"

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

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	// Audit event publisher; the feed degrades to a no-op when no broker
	// is configured.
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

	notifStore := notification.NewPgStore(pgPool)
	router := dispatch.NewRouter(notifStore, log, met)
	defer router.Close()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, router, pub,
		booking.Policy{ReleaseSlotOnCancel: cfg.ReleaseSlotOnCancel}, log).WithMetrics(met)

	handler := api.NewRouter(api.RouterConfig{
		Booking:        svc,
		Dispatch:       router,
		Notifications:  notifStore,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         log,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
