package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types following RFC 7807
const (
	TypeValidation   = "/errors/validation"
	TypeUnreachable  = "/errors/authority/unreachable"
	TypeTimeout      = "/errors/authority/timeout"
	TypeRejected     = "/errors/authority/rejected"
	TypeNotification = "/errors/notification"
	TypeNotFound     = "/errors/not-found"
	TypeUnauthorized = "/errors/unauthorized"
	TypeRateLimit    = "/errors/rate-limit"
	TypeServiceDown  = "/errors/service-unavailable"
	TypeInternal     = "/errors/internal"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.String("kind", string(KindOf(err))),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Taxonomy
// errors map to a distinct type each so clients can pick the remedy.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	if errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeServiceDown,
			"Request Cancelled",
			"The request was cancelled before it completed",
			r.URL.Path,
		)
	}

	problem := problemForKind(err, r.URL.Path)
	return problem.WithExtension("message", UserMessage(err))
}

func problemForKind(err error, instance string) *ProblemDetails {
	kind := KindOf(err)

	switch kind {
	case KindValidation:
		var v *ValidationError
		errors.As(err, &v)
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Validation Failed",
			v.Error(),
			instance,
		).WithExtension("kind", kind).
			WithExtension("errors", []ValidationError{*v})

	case KindUnreachable:
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeUnreachable,
			"License Server Unreachable",
			err.Error(),
			instance,
		).WithExtension("kind", kind)

	case KindTimeout:
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"License Server Timeout",
			err.Error(),
			instance,
		).WithExtension("kind", kind)

	case KindRejected:
		var rejected *RemoteRejectedError
		errors.As(err, &rejected)
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeRejected,
			"Rejected By License Server",
			rejected.Message,
			instance,
		).WithExtension("kind", kind).
			WithExtension("upstream_status", rejected.StatusCode)

	case KindNotification:
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeNotification,
			"Notification Failed",
			err.Error(),
			instance,
		).WithExtension("kind", kind)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			instance,
		).WithExtension("kind", KindUnknown)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "INVALID_REQUEST", "VALIDATION_FAILED", "CONFIRMATION_REQUIRED":
		problemType = TypeValidation
	case "NOT_FOUND", "JOB_NOT_FOUND":
		problemType = TypeNotFound
	case "UNAUTHORIZED":
		problemType = TypeUnauthorized
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "QUEUE_FULL":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
