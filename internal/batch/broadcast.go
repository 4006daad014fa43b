package batch

import (
	"context"
	"log/slog"
	"strings"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/notify"
	"licenseadmin/internal/validation"
	"licenseadmin/pkg/contracts/domain"
)

// BroadcastRequest is a mailing to many recipients without issuing licenses.
type BroadcastRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,required"`
	Subject    string   `json:"subject" validate:"required"`
	HTMLBody   string   `json:"htmlBody" validate:"required"`
}

// Broadcast sends the same message to every recipient, one at a time. Like
// Run it needs confirmation for more than one recipient and isolates
// per-recipient failures.
func (c *Coordinator) Broadcast(ctx context.Context, req BroadcastRequest, confirm Confirmer, progress Progress) (*domain.BatchResult, error) {
	req, err := c.PrepareBroadcast(req)
	if err != nil {
		return nil, err
	}
	if err := c.confirm(ctx, req.Recipients, confirm); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "broadcast started", slog.Int("recipients", len(req.Recipients)))

	plain := notify.StripTags(req.HTMLBody)
	result := newResult(len(req.Recipients))
	for i, recipient := range req.Recipients {
		attempt := domain.BatchAttempt{Recipient: recipient}

		err := c.checkRecipient(recipient)
		if err == nil {
			err = c.wait(ctx)
		}
		if err == nil {
			err = c.sender.Send(ctx, notify.Message{
				To:        recipient,
				Subject:   req.Subject,
				HTMLBody:  req.HTMLBody,
				PlainBody: plain,
			})
		}
		if err != nil {
			attempt = failed(attempt, domain.StageNotify, err)
		}

		result.add(attempt)
		c.metrics.record(ctx, "broadcast", attempt)
		if progress != nil {
			progress(i+1, len(req.Recipients), attempt)
		}
	}

	c.logger.InfoContext(ctx, "broadcast finished",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed))

	return result.BatchResult, nil
}

// PrepareBroadcast normalizes and validates req without sending anything.
func (c *Coordinator) PrepareBroadcast(req BroadcastRequest) (BroadcastRequest, error) {
	req.Recipients = validation.NormalizeRecipients(req.Recipients)
	req.Subject = strings.TrimSpace(req.Subject)

	if len(req.Recipients) == 0 {
		return req, apierrors.NewValidationError("recipients", "must not be empty")
	}
	if err := c.validator.Struct(req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.HTMLBody) == "" {
		return req, apierrors.NewValidationError("htmlBody", "is required")
	}
	return req, nil
}
