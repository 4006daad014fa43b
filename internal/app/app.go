package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/batch"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/health"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/internal/notify"
	"licenseadmin/internal/operations"
	handlers "licenseadmin/internal/transport/http"
	"licenseadmin/internal/websocket"
)

// jobRetention is how many finished jobs stay visible under /api/jobs.
const jobRetention = 200

// Application is the wired admin server.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Authority   *authority.Client
	Licenses    *license.Service
	Maintenance *license.Maintenance
	Batches     *batch.Coordinator
	Queue       *operations.Queue
	Hub         *websocket.Hub

	Router http.Handler
	Server *http.Server
}

// Option customizes New.
type Option func(*options)

type options struct {
	sender notify.Sender
}

// WithSender replaces the sender built from the mail configuration.
func WithSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// New wires every component from cfg. Nothing is started until Run or
// Serve is called.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("authority", cfg.Authority.BaseURL),
		slog.String("mail_provider", cfg.Mail.Provider))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	client, err := authority.New(cfg.Authority, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authority client: %w", err)
	}

	sender := o.sender
	if sender == nil {
		sender, err = notify.NewSender(ctx, cfg.Mail, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mail sender: %w", err)
		}
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Authority:     client,
		Licenses:      license.NewService(client, license.NewHistoryStore(cfg.HistoryPath()), logger),
		Maintenance:   license.NewMaintenance(client, logger),
		Queue:         operations.NewQueue(cfg.Workers, operations.NewMemoryJobStore(jobRetention), logger),
		Hub:           websocket.NewHub(logger),
	}
	a.Batches = batch.NewCoordinator(a.Licenses, sender, cfg.Batch, logger)

	// Every state change is pushed to connected dashboards.
	a.Queue.OnUpdate(a.Hub.JobListener())
	a.Maintenance.OnChange(a.Hub.MaintenanceListener())
	a.Licenses.OnRefresh(a.Hub.RefreshListener())

	a.Router = a.newRouter()
	a.Server = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func (a *Application) newRouter() http.Handler {
	deps := handlers.RouterDeps{
		Server:      a.Config.Server,
		Batch:       a.Config.Batch,
		Licenses:    a.Licenses,
		Maintenance: a.Maintenance,
		Batches:     a.Batches,
		Queue:       a.Queue,
		Hub:         a.Hub,
		Health:      health.NewService(a.Maintenance, a.Queue, a.Hub, a.Logger),
		Tracer:      a.OTelProviders.Tracer,
		Metrics:     a.OTelProviders.PrometheusHTTP,
		Logger:      a.Logger,
	}

	if m, err := infrastructure.NewHTTPMetrics(a.OTelProviders.Meter); err == nil {
		deps.HTTPMetrics = m
	} else {
		a.Logger.Warn("HTTP metrics disabled", slog.String("error", err.Error()))
	}

	return handlers.NewRouter(deps)
}

// Run listens on the configured address and serves until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the hub, the job queue and the HTTP server on ln until ctx is
// done, then shuts everything down in reverse order.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", "http://"+ln.Addr().String()),
		slog.Bool("admin_token", a.Config.Server.AdminToken != ""))

	if a.Config.Server.AdminToken == "" {
		a.Logger.WarnContext(ctx, "admin token not set, the API is open to anyone who can reach it")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	a.Queue.Start(gctx)

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.primeMaintenance(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// primeMaintenance reads the maintenance flag once so the dashboard does
// not start out in the unknown state. Failure is not fatal.
func (a *Application) primeMaintenance(ctx context.Context) {
	on, err := a.Maintenance.Read(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "initial maintenance status read failed",
			slog.String("kind", string(apierrors.KindOf(err))),
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "maintenance status", slog.Bool("maintenance_mode", on))
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.InfoContext(ctx, "Shutting down application")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.Queue.Stop(stopTimeout(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("job queue: %w", err))
	}

	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func stopTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return time.Second
}
