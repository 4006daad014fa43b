package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
)

// ErrDisabled is returned by the disabled sender.
var ErrDisabled = errors.New("mail provider is not configured")

// Sender delivers a single message. Failures are *apierrors.NotificationError.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	logger = infrastructure.WithComponent(logger, "notify")

	switch cfg.Provider {
	case "gmail":
		return NewGmailSender(ctx, cfg, logger)
	case "smtp":
		return NewSMTPSender(cfg, logger)
	case "none", "":
		logger.Info("mail provider disabled, license emails will not be sent")
		return DisabledSender{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.Provider)
	}
}

// DisabledSender fails every send with ErrDisabled.
type DisabledSender struct{}

// Send implements Sender.
func (DisabledSender) Send(_ context.Context, msg Message) error {
	return &apierrors.NotificationError{Recipient: msg.To, Err: ErrDisabled}
}

func fromAddress(cfg config.MailConfig) mail.Address {
	return mail.Address{Name: cfg.SenderName, Address: cfg.Sender}
}

func notificationError(to string, err error) error {
	var ne *apierrors.NotificationError
	if errors.As(err, &ne) {
		return err
	}
	return &apierrors.NotificationError{Recipient: to, Err: err}
}
