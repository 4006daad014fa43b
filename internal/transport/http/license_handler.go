package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/exporter"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/internal/operations"
	"licenseadmin/internal/validation"
	api "licenseadmin/pkg/contracts/api/v1"
	"licenseadmin/pkg/contracts/domain"
)

const (
	emptyLicensesText = "No licenses found."
	emptyUsersText    = "No registered users found."
)

// LicenseHandler serves licenses, users and the local issuance history.
type LicenseHandler struct {
	licenses  LicenseService
	queue     JobQueue
	errors    *apierrors.ErrorHandler
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(licenses LicenseService, queue JobQueue, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		licenses:  licenses,
		queue:     queue,
		errors:    errHandler,
		validator: validation.New(),
		logger:    infrastructure.WithComponent(logger, "license_handler"),
	}
}

// Routes returns the /api/licenses router
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Generate)
	r.Post("/invalidate", h.Invalidate)
	r.Get("/export", h.Export)
	return r
}

// Generate handles POST /api/licenses
func (h *LicenseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body api.GenerateLicenseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	req, err := license.NewGenerateRequest(body.RawCap(), body.UserName, body.UserEmail)
	if err == nil {
		err = h.validator.Struct(req)
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	job, err := h.queue.Submit(r.Context(), domain.JobKindGenerate, func(ctx context.Context, report operations.ReportFunc) (any, error) {
		report(10, "Requesting license")
		key, err := h.licenses.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return api.GenerateResult{LicenseKey: key}, nil
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	accepted(w, r, job)
}

// Invalidate handles POST /api/licenses/invalidate
func (h *LicenseHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var body api.InvalidateLicenseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	key := strings.TrimSpace(body.License)
	if key == "" {
		h.errors.HandleError(w, r, apierrors.NewValidationError("license", "is required"))
		return
	}

	job, err := h.queue.Submit(r.Context(), domain.JobKindInvalidate, func(ctx context.Context, report operations.ReportFunc) (any, error) {
		report(10, "Invalidating license")
		msg, err := h.licenses.Invalidate(ctx, key)
		if err != nil {
			return nil, err
		}
		return api.InvalidateResult{Message: msg}, nil
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	accepted(w, r, job)
}

// List handles GET /api/licenses. An empty listing is a 200 with a
// message, a failed one is a problem response.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	listing := h.licenses.ListLicenses(r.Context())
	if listing.Outcome == license.OutcomeFailed {
		h.errors.HandleError(w, r, listing.Err)
		return
	}

	render.JSON(w, r, api.LicenseListResponse{
		Outcome:  api.ListOutcome(listing.Outcome),
		Licenses: listing.Items,
		Message:  listing.Message(emptyLicensesText),
	})
}

// Users handles GET /api/users
func (h *LicenseHandler) Users(w http.ResponseWriter, r *http.Request) {
	listing := h.licenses.ListUsers(r.Context())
	if listing.Outcome == license.OutcomeFailed {
		h.errors.HandleError(w, r, listing.Err)
		return
	}

	emails := make([]string, 0, len(listing.Items))
	for _, u := range listing.Items {
		emails = append(emails, u.Email)
	}

	render.JSON(w, r, api.UserListResponse{
		Outcome: api.ListOutcome(listing.Outcome),
		Users:   listing.Items,
		Emails:  validation.UniqueSortedEmails(emails),
		Message: listing.Message(emptyUsersText),
	})
}

// Export handles GET /api/licenses/export?format=csv|xlsx
func (h *LicenseHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errors.HandleError(w, r, apierrors.NewValidationError("format", "must be csv or xlsx"))
		return
	}

	listing := h.licenses.ListLicenses(r.Context())
	if listing.Outcome == license.OutcomeFailed {
		h.errors.HandleError(w, r, listing.Err)
		return
	}

	filename := fmt.Sprintf("licenses-%s%s", time.Now().Format("20060102"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := exporter.Write(w, format, exporter.LicenseTable(listing.Items)); err != nil {
		// headers are gone; all that is left is to log
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "licenses exported",
		slog.String("format", string(format)),
		slog.Int("rows", len(listing.Items)))
}

// History handles GET /api/history
func (h *LicenseHandler) History(w http.ResponseWriter, r *http.Request) {
	records := []domain.HistoryRecord{}
	if store := h.licenses.History(); store != nil {
		list, err := store.List()
		if err != nil {
			h.errors.HandleError(w, r, &apierrors.UnknownError{Detail: "reading issuance history", Cause: err})
			return
		}
		records = append(records, list...)
	}

	render.JSON(w, r, api.HistoryResponse{Records: records})
}
