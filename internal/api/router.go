package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/auditlog"
	"github.com/clinicore/scheduling-engine/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	Audit   auditlog.Recorder
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	// Health and observability endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/by-location/{id}", getWeeklyScheduleHandler(cfg.Service))
			r.Post("/by-location/{id}", replaceWeeklyScheduleHandler(cfg.Service, cfg.Audit))
			r.Get("/config", getSchedulingConfigHandler(cfg.Service))
			r.Post("/config", setSchedulingConfigHandler(cfg.Service, cfg.Audit))
			r.Put("/{locationID}/{dayOfWeek}", updateScheduleDayHandler(cfg.Service, cfg.Audit))
		})

		r.Get("/slots/{locationID}/{date}", getSlotsForDayHandler(cfg.Service))

		r.Route("/unavailable-periods", func(r chi.Router) {
			r.Post("/", blockRangeHandler(cfg.Service, cfg.Audit))
			r.Post("/emergency-block", emergencyBlockHandler(cfg.Service, cfg.Audit))
			// Same segment, so the same param name: GET reads it as a
			// location id, DELETE as a period id.
			r.Get("/{id}", listPeriodsHandler(cfg.Service))
			r.Delete("/{id}", unblockPeriodHandler(cfg.Service, cfg.Audit))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Service, cfg.Audit))
			r.Get("/{id}", getAppointmentHandler(cfg.Service))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Service, cfg.Audit))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Service, cfg.Audit))
		})

		r.Post("/health/fix-anomalies", fixAnomaliesHandler(cfg.Service, cfg.Audit))
	})

	return r
}
