package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/health"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/middleware"
	"licenseadmin/internal/websocket"
	"licenseadmin/pkg/contracts"
	api "licenseadmin/pkg/contracts/api/v1"
)

// RouterDeps collects everything the admin API serves.
type RouterDeps struct {
	Server      config.ServerConfig
	Batch       config.BatchConfig
	Licenses    LicenseService
	Maintenance MaintenanceService
	Batches     BatchService
	Queue       JobQueue
	Hub         *websocket.Hub
	Health      *health.Service

	// Optional
	Tracer      trace.Tracer
	HTTPMetrics *infrastructure.HTTPMetrics
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter assembles the admin API. /healthz, /readyz and /metrics are public;
// everything under /api and /ws needs the admin token when one is set.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	errHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Telemetry(d.Tracer, d.HTTPMetrics))
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(errHandler))
	r.Use(middleware.SecurityHeaders)

	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, api.HealthResponse{Status: "ok", Build: contracts.CurrentBuild()})
	})
	if d.Health != nil {
		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			status := d.Health.Readiness(r.Context())
			if !status.Ready() {
				render.Status(r, http.StatusServiceUnavailable)
			}
			render.JSON(w, r, status)
		})
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	licenses := NewLicenseHandler(d.Licenses, d.Queue, errHandler, logger)
	maintenance := NewMaintenanceHandler(d.Maintenance, d.Queue, errHandler, logger)
	batches := NewBatchHandler(d.Batches, d.Queue, d.Batch.DefaultMaxIPs, errHandler, logger)
	jobs := NewJobsHandler(d.Queue, errHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminToken(d.Server.AdminToken, logger))
		if d.Server.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(d.Server.RateLimit.RPS, d.Server.RateLimit.Burst, logger).Handler)
		}

		if d.Hub != nil {
			r.Get("/ws", websocket.Handler(d.Hub, logger))
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireJSON)

			r.Mount("/licenses", licenses.Routes())
			r.Get("/users", licenses.Users)
			r.Get("/history", licenses.History)
			r.Mount("/maintenance", maintenance.Routes())
			r.Post("/batches/preview", batches.Preview)
			r.Post("/batches", batches.Issue)
			r.Post("/broadcasts", batches.Broadcast)
			r.Mount("/jobs", jobs.Routes())
		})
	})

	return r
}
