package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/petcare/visit-scheduling/internal/observability/metrics"
	"github.com/petcare/visit-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	Metrics *metrics.BookingMetrics
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Provider availability and schedule management
	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Get("/available-dates", availableDatesHandler(cfg.Service, cfg.Metrics))
		r.Get("/free-slots", freeSlotsHandler(cfg.Service, cfg.Metrics))
		r.Get("/schedule", getScheduleHandler(cfg.Service))
		r.Put("/schedule", replaceScheduleHandler(cfg.Service))
		r.Get("/time-off", listTimeOffHandler(cfg.Service))
		r.Post("/time-off", createTimeOffHandler(cfg.Service))
		r.Delete("/time-off/{timeOffID}", deleteTimeOffHandler(cfg.Service))
	})

	// Visits
	r.Post("/visits", bookVisitHandler(cfg.Service, cfg.Metrics))
	r.Get("/visits/by-pet/{petID}", visitsForPetHandler(cfg.Service))
	r.Get("/visits/by-provider/{providerID}", visitsForProviderHandler(cfg.Service))
	r.Get("/visits/{visitID}", getVisitHandler(cfg.Service))
	r.Patch("/visits/{visitID}", updateVisitHandler(cfg.Service))
	r.Post("/visits/{visitID}/status", changeVisitStatusHandler(cfg.Service))
	r.Get("/visits/{visitID}/record-allowed", recordAllowedHandler(cfg.Service))

	return r
}
