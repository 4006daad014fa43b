package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by the remedy the operator needs to apply.
type Kind string

const (
	KindNone         Kind = ""
	KindValidation   Kind = "validation"
	KindUnreachable  Kind = "unreachable"
	KindTimeout      Kind = "timeout"
	KindRejected     Kind = "rejected"
	KindNotification Kind = "notification"
	KindUnknown      Kind = "unknown"
)

// Transport sentinels. Adapters wrap them with the failing endpoint.
var (
	ErrUnreachable        = errors.New("license authority unreachable")
	ErrTimeout            = errors.New("license authority timed out")
	ErrNotificationFailed = errors.New("notification failed")
)

// ValidationError is a local input error detected before any network call.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RemoteRejectedError is returned when the authority answered but refused
// the request, either with a non-2xx status or with success set to false.
type RemoteRejectedError struct {
	StatusCode int
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("license authority rejected the request (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("license authority rejected the request (status %d): %s", e.StatusCode, e.Message)
}

// UnknownError carries any transport failure that is neither a timeout nor
// a refused connection.
type UnknownError struct {
	Detail string
	Cause  error
}

func (e *UnknownError) Error() string {
	return "unexpected failure: " + e.Detail
}

func (e *UnknownError) Unwrap() error {
	return e.Cause
}

// NotificationError records a failed send to a single recipient.
type NotificationError struct {
	Recipient string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification to %s failed: %v", e.Recipient, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotificationFailed) match any NotificationError.
func (e *NotificationError) Is(target error) bool {
	return target == ErrNotificationFailed
}

// KindOf reports which taxonomy bucket err belongs to. Errors outside the
// taxonomy are reported as KindUnknown; a nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		validation *ValidationError
		rejected   *RemoteRejectedError
	)

	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, ErrNotificationFailed):
		return KindNotification
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUnreachable):
		return KindUnreachable
	case errors.As(err, &rejected):
		return KindRejected
	default:
		return KindUnknown
	}
}

// UserMessage renders err for an operator, naming what to do next.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	switch KindOf(err) {
	case KindValidation:
		var v *ValidationError
		errors.As(err, &v)
		b.WriteString("Invalid input: ")
		b.WriteString(v.Error())
		b.WriteString(". Fix the input and try again.")
	case KindUnreachable:
		b.WriteString("Could not connect to the license server. Check that the server is up and the base URL is correct.")
	case KindTimeout:
		b.WriteString("The license server did not answer in time. Check that the server is up and try again.")
	case KindRejected:
		var r *RemoteRejectedError
		errors.As(err, &r)
		b.WriteString("The license server rejected the request")
		if r.Message != "" {
			b.WriteString(": ")
			b.WriteString(r.Message)
		}
		b.WriteString(". Check your credentials and the request.")
	case KindNotification:
		b.WriteString("The email could not be sent: ")
		b.WriteString(err.Error())
		b.WriteString(". Check the mail credentials; the license was already issued.")
	default:
		b.WriteString("Unexpected error: ")
		b.WriteString(err.Error())
		b.WriteString(". Please escalate.")
	}
	return b.String()
}
