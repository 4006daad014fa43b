package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/operations"
	api "licenseadmin/pkg/contracts/api/v1"
	"licenseadmin/pkg/contracts/domain"
)

// MaintenanceHandler serves the server maintenance flag.
type MaintenanceHandler struct {
	maintenance MaintenanceService
	queue       JobQueue
	errors      *apierrors.ErrorHandler
	logger      *slog.Logger
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(maintenance MaintenanceService, queue JobQueue, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		maintenance: maintenance,
		queue:       queue,
		errors:      errHandler,
		logger:      infrastructure.WithComponent(logger, "maintenance_handler"),
	}
}

// Routes returns the /api/maintenance router
func (h *MaintenanceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Put("/", h.Set)
	r.Post("/toggle", h.Toggle)
	return r
}

// Get handles GET /api/maintenance. The flag is always read from the
// server; ?cached=true returns the last confirmed state instead.
func (h *MaintenanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cached") == "true" {
		state := h.maintenance.State()
		render.JSON(w, r, api.MaintenanceResponse{
			MaintenanceMode: state == domain.MaintenanceActive,
			State:           state.String(),
		})
		return
	}

	on, err := h.maintenance.Read(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, maintenanceResponse(on))
}

// Set handles PUT /api/maintenance
func (h *MaintenanceHandler) Set(w http.ResponseWriter, r *http.Request) {
	var body api.SetMaintenanceRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if body.MaintenanceMode == nil {
		h.errors.HandleError(w, r, apierrors.NewValidationError("maintenanceMode", "is required"))
		return
	}
	on := *body.MaintenanceMode

	h.submit(w, r, fmt.Sprintf("Setting maintenance mode to %t", on), func(ctx context.Context) (bool, error) {
		return h.maintenance.Set(ctx, on)
	})
}

// Toggle handles POST /api/maintenance/toggle
func (h *MaintenanceHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "Toggling maintenance mode", h.maintenance.Toggle)
}

func (h *MaintenanceHandler) submit(w http.ResponseWriter, r *http.Request, msg string, fn func(context.Context) (bool, error)) {
	job, err := h.queue.Submit(r.Context(), domain.JobKindMaintenance, func(ctx context.Context, report operations.ReportFunc) (any, error) {
		report(10, msg)
		on, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return maintenanceResponse(on), nil
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	accepted(w, r, job)
}

func maintenanceResponse(on bool) api.MaintenanceResponse {
	return api.MaintenanceResponse{
		MaintenanceMode: on,
		State:           domain.MaintenanceStateOf(on).String(),
	}
}
