package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"licenseadmin/internal/batch"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/operations"
	api "licenseadmin/pkg/contracts/api/v1"
	"licenseadmin/pkg/contracts/domain"
)

// BatchHandler serves batch issuance and broadcast mailings.
type BatchHandler struct {
	batches       BatchService
	queue         JobQueue
	errors        *apierrors.ErrorHandler
	defaultMaxIPs int
	logger        *slog.Logger
}

// NewBatchHandler creates a new batch handler. defaultMaxIPs applies when
// a request leaves maxIPs unset.
func NewBatchHandler(batches BatchService, queue JobQueue, defaultMaxIPs int, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batches:       batches,
		queue:         queue,
		errors:        errHandler,
		defaultMaxIPs: defaultMaxIPs,
		logger:        infrastructure.WithComponent(logger, "batch_handler"),
	}
}

func (h *BatchHandler) request(body api.BatchIssueRequest) domain.BatchRequest {
	maxIPs := body.MaxIPs
	if maxIPs == 0 {
		maxIPs = h.defaultMaxIPs
	}
	return domain.BatchRequest{
		Recipients:   body.Recipients,
		Subject:      body.Subject,
		BodyTemplate: body.BodyTemplate,
		MaxIPs:       maxIPs,
	}
}

// Preview handles POST /api/batches/preview. Nothing is sent.
func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var body api.BatchIssueRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	req, err := h.batches.Prepare(h.request(body))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.BatchPreviewResponse{
		Recipients:           req.Recipients,
		Count:                len(req.Recipients),
		ConfirmationRequired: len(req.Recipients) > 1,
		SampleBody:           batch.Preview(req),
	})
}

// Issue handles POST /api/batches
func (h *BatchHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body api.BatchIssueRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	req, err := h.batches.Prepare(h.request(body))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if !h.confirmed(w, r, req.Recipients, body.Confirmed) {
		return
	}

	job, err := h.queue.Submit(r.Context(), domain.JobKindBatch, func(ctx context.Context, report operations.ReportFunc) (any, error) {
		report(0, fmt.Sprintf("Issuing %d licenses", len(req.Recipients)))
		return h.batches.Run(ctx, req, batch.Confirmed(true), progressReporter(report))
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	accepted(w, r, job)
}

// Broadcast handles POST /api/broadcasts
func (h *BatchHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var body api.BroadcastRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	req, err := h.batches.PrepareBroadcast(batch.BroadcastRequest{
		Recipients: body.Recipients,
		Subject:    body.Subject,
		HTMLBody:   body.HTMLBody,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if !h.confirmed(w, r, req.Recipients, body.Confirmed) {
		return
	}

	job, err := h.queue.Submit(r.Context(), domain.JobKindBroadcast, func(ctx context.Context, report operations.ReportFunc) (any, error) {
		report(0, fmt.Sprintf("Mailing %d recipients", len(req.Recipients)))
		return h.batches.Broadcast(ctx, req, batch.Confirmed(true), progressReporter(report))
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	accepted(w, r, job)
}

// confirmed enforces the confirmation rule before anything is queued.
func (h *BatchHandler) confirmed(w http.ResponseWriter, r *http.Request, recipients []string, ok bool) bool {
	if len(recipients) < 2 || ok {
		return true
	}

	h.logger.InfoContext(r.Context(), "batch not confirmed",
		slog.Int("recipients", len(recipients)))
	h.errors.HandleError(w, r, apierrors.NewWithDetails(
		apierrors.ErrConfirmationNeeded.StatusCode,
		apierrors.ErrConfirmationNeeded.ErrorCode,
		fmt.Sprintf("Sending to %d recipients must be confirmed", len(recipients)),
		map[string]any{"recipients": recipients, "count": len(recipients)},
	))
	return false
}

func progressReporter(report operations.ReportFunc) batch.Progress {
	return func(done, total int, attempt domain.BatchAttempt) {
		status := "ok"
		if !attempt.Succeeded() {
			status = "failed at " + string(attempt.FailedAt)
		}
		report(percent(done, total), fmt.Sprintf("%d/%d %s: %s", done, total, attempt.Recipient, status))
	}
}
