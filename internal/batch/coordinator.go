package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/internal/notify"
	"licenseadmin/internal/validation"
	"licenseadmin/pkg/contracts/domain"
)

// ErrNotConfirmed is returned when a multi-recipient batch was declined or
// no confirmation was available.
var ErrNotConfirmed = errors.New("batch was not confirmed by the operator")

// Issuer generates a single license. *license.Service satisfies it.
type Issuer interface {
	Generate(ctx context.Context, req license.GenerateRequest) (string, error)
}

// Confirmer asks the operator to approve a batch of count recipients.
type Confirmer interface {
	Confirm(ctx context.Context, recipients []string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, recipients []string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, recipients []string) (bool, error) {
	return f(ctx, recipients)
}

// Confirmed is a Confirmer with a fixed answer, for callers that collected
// the approval up front.
func Confirmed(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, []string) (bool, error) { return ok, nil })
}

// Progress is called after each recipient with the number attempted so far.
type Progress func(done, total int, attempt domain.BatchAttempt)

// Coordinator runs batch issuance and broadcast mailings.
type Coordinator struct {
	issuer    Issuer
	sender    notify.Sender
	validator *validation.Validator
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *Metrics
}

// NewCoordinator creates a Coordinator. A positive cfg.SendInterval paces
// recipients to stay under mail provider quotas.
func NewCoordinator(issuer Issuer, sender notify.Sender, cfg config.BatchConfig, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		issuer:    issuer,
		sender:    sender,
		validator: validation.New(),
		logger:    infrastructure.WithComponent(logger, "batch"),
	}

	if cfg.SendInterval > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(cfg.SendInterval), burst)
	}

	if m, err := NewMetrics(otel.Meter(infrastructure.MeterName)); err == nil {
		c.metrics = m
	}
	return c
}

// Prepare normalizes the recipient list and validates the request. The
// returned request is what Run would execute. Recipient addresses are
// checked one by one during the run, so a malformed entry fails only its
// own attempt.
func (c *Coordinator) Prepare(req domain.BatchRequest) (domain.BatchRequest, error) {
	req.Recipients = validation.NormalizeRecipients(req.Recipients)
	req.Subject = strings.TrimSpace(req.Subject)

	if len(req.Recipients) == 0 {
		return req, apierrors.NewValidationError("recipients", "must not be empty")
	}
	if err := c.validator.Struct(req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.BodyTemplate) == "" {
		return req, apierrors.NewValidationError("bodyTemplate", "is required")
	}
	if !notify.HasLicensePlaceholder(req.BodyTemplate) {
		return req, apierrors.NewValidationError("bodyTemplate", "must contain [licenseKey] or {{licenseKey}}")
	}
	return req, nil
}

// Run issues a license and sends one email per recipient, in list order.
// Batches of more than one recipient need approval from confirm; a nil
// Confirmer counts as declined. The returned error is non-nil only when
// the batch did not start.
func (c *Coordinator) Run(ctx context.Context, req domain.BatchRequest, confirm Confirmer, progress Progress) (*domain.BatchResult, error) {
	req, err := c.Prepare(req)
	if err != nil {
		return nil, err
	}
	if err := c.confirm(ctx, req.Recipients, confirm); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "batch started",
		slog.Int("recipients", len(req.Recipients)),
		slog.Int("max_ips", req.MaxIPs))
	start := time.Now()

	result := newResult(len(req.Recipients))
	for i, recipient := range req.Recipients {
		attempt := c.issueOne(ctx, req, recipient)
		result.add(attempt)
		c.metrics.record(ctx, "issue", attempt)

		if progress != nil {
			progress(i+1, len(req.Recipients), attempt)
		}
	}

	c.logger.InfoContext(ctx, "batch finished",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("issued_without_notice", len(result.IssuedWithoutNotice)),
		slog.Duration("duration", time.Since(start)))

	return result.BatchResult, nil
}

func (c *Coordinator) confirm(ctx context.Context, recipients []string, confirm Confirmer) error {
	if len(recipients) < 2 {
		return nil
	}
	if confirm == nil {
		return ErrNotConfirmed
	}

	ok, err := confirm.Confirm(ctx, recipients)
	if err != nil {
		return fmt.Errorf("confirm batch: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

func (c *Coordinator) issueOne(ctx context.Context, req domain.BatchRequest, recipient string) domain.BatchAttempt {
	attempt := domain.BatchAttempt{Recipient: recipient}

	// a malformed address never gets a license it could not receive
	if err := c.checkRecipient(recipient); err != nil {
		return failed(attempt, domain.StageGenerate, err)
	}
	if err := c.wait(ctx); err != nil {
		return failed(attempt, domain.StageGenerate, err)
	}

	key, err := c.issuer.Generate(ctx, license.GenerateRequest{
		MaxUniqueIPs: req.MaxIPs,
		UserEmail:    recipient,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "batch license generation failed",
			slog.String("recipient", recipient),
			slog.String("kind", string(apierrors.KindOf(err))),
			slog.String("error", err.Error()))
		return failed(attempt, domain.StageGenerate, err)
	}
	attempt.LicenseKey = key

	html := notify.Render(req.BodyTemplate, notify.Vars{LicenseKey: key, UserName: nameFromEmail(recipient)})
	err = c.sender.Send(ctx, notify.Message{
		To:        recipient,
		Subject:   req.Subject,
		HTMLBody:  html,
		PlainBody: notify.StripTags(html),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "license issued but email failed",
			slog.String("recipient", recipient),
			slog.String("license", infrastructure.MaskKey(key)),
			slog.String("error", err.Error()))
		return failed(attempt, domain.StageNotify, err)
	}

	return attempt
}

func (c *Coordinator) checkRecipient(recipient string) error {
	return c.validator.Var("recipient", recipient, "email")
}

func (c *Coordinator) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func failed(a domain.BatchAttempt, stage domain.BatchStage, err error) domain.BatchAttempt {
	a.FailedAt = stage
	a.Error = apierrors.UserMessage(err)
	a.ErrorKind = string(apierrors.KindOf(err))
	return a
}

// nameFromEmail greets batch recipients by the local part of their address.
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// SampleLicenseKey stands in for the license key in previews.
const SampleLicenseKey = "XXXX-XXXX-XXXX-XXXX"

// Preview renders the body the first recipient of req would receive.
func Preview(req domain.BatchRequest) string {
	vars := notify.Vars{LicenseKey: SampleLicenseKey}
	if len(req.Recipients) > 0 {
		vars.UserName = nameFromEmail(req.Recipients[0])
	}
	return notify.Render(req.BodyTemplate, vars)
}
