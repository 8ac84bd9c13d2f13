package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alturos-health/scheduling/internal/booking"
	"github.com/alturos-health/scheduling/internal/dispatch"
	"github.com/alturos-health/scheduling/internal/notification"
)

type RouterConfig struct {
	Booking        *booking.Service
	Dispatch       *dispatch.Router
	Notifications  notification.Store
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         *zap.Logger
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	validate := validator.New()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	// Health and metrics stay unauthenticated.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(cfg.JWTSecret))

		r.Route("/api", func(r chi.Router) {
			r.Post("/appointments", createAppointmentHandler(cfg.Booking, validate))
			r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
			r.Post("/appointments/{id}/status", transitionAppointmentHandler(cfg.Booking, validate))
			r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Booking))

			r.Get("/providers/{id}/slots", availableSlotsHandler(cfg.Booking))

			r.Get("/notifications", listNotificationsHandler(cfg.Notifications))
			r.Post("/notifications/{id}/read", markNotificationReadHandler(cfg.Notifications))
			r.Post("/notifications/read-all", markAllNotificationsReadHandler(cfg.Notifications))
			r.Get("/notifications/unread-count", unreadCountHandler(cfg.Notifications))
			r.Delete("/notifications/{id}", deleteNotificationHandler(cfg.Notifications))
			r.Get("/notifications/preferences", getPreferencesHandler(cfg.Notifications))
			r.Put("/notifications/preferences", updatePreferencesHandler(cfg.Notifications))
		})

		r.Get("/ws/notifications", notificationsWebSocketHandler(cfg.Dispatch, cfg.Logger))
	})

	return r
}
