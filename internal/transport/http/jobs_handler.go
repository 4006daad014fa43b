package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/operations"
	api "licenseadmin/pkg/contracts/api/v1"
	"licenseadmin/pkg/contracts/domain"
)

// JobsHandler exposes the job queue.
type JobsHandler struct {
	queue  JobQueue
	errors *apierrors.ErrorHandler
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(queue JobQueue, errHandler *apierrors.ErrorHandler) *JobsHandler {
	return &JobsHandler{queue: queue, errors: errHandler}
}

// Routes returns the /api/jobs router
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// List handles GET /api/jobs?kind=&status=&since=&limit=
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := operations.JobFilter{
		Kind:   domain.JobKind(q.Get("kind")),
		Status: domain.JobStatus(q.Get("status")),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.errors.HandleError(w, r, apierrors.NewValidationError("limit", "must be a non-negative whole number"))
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.errors.HandleError(w, r, apierrors.NewValidationError("since", "must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = since
	}

	jobs := h.queue.List(filter)
	if jobs == nil {
		jobs = []domain.JobSnapshot{}
	}
	render.JSON(w, r, api.JobListResponse{Jobs: jobs, Queue: h.queue.Stats()})
}

// Get handles GET /api/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job.Snapshot())
}
