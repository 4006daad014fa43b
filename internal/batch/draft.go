package batch

import (
	"context"
	"sync"

	"licenseadmin/internal/validation"
	"licenseadmin/pkg/contracts/domain"
)

// Draft is the operator's in-progress batch form. It survives failed or
// declined runs so nothing has to be retyped, and is cleared once a run
// has produced its report.
type Draft struct {
	mu           sync.Mutex
	recipients   string
	subject      string
	bodyTemplate string
	maxIPs       int
}

// NewDraft returns an empty draft with the default cap filled in.
func NewDraft(defaultMaxIPs int) *Draft {
	return &Draft{maxIPs: defaultMaxIPs}
}

// Fill replaces the draft contents. recipients is free text, one address
// per line or separated by commas or semicolons.
func (d *Draft) Fill(recipients, subject, bodyTemplate string, maxIPs int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = recipients
	d.subject = subject
	d.bodyTemplate = bodyTemplate
	d.maxIPs = maxIPs
}

// Request converts the draft into a batch request.
func (d *Draft) Request() domain.BatchRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.BatchRequest{
		Recipients:   validation.SplitRecipients(d.recipients),
		Subject:      d.subject,
		BodyTemplate: d.bodyTemplate,
		MaxIPs:       d.maxIPs,
	}
}

// Empty reports whether the draft has no recipients, subject or body.
func (d *Draft) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recipients == "" && d.subject == "" && d.bodyTemplate == ""
}

func (d *Draft) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = ""
	d.subject = ""
	d.bodyTemplate = ""
}

// RunDraft runs the batch described by d. The draft is reset only after
// the result exists; validation failures and declined confirmations leave
// it untouched.
func (c *Coordinator) RunDraft(ctx context.Context, d *Draft, confirm Confirmer, progress Progress) (*domain.BatchResult, error) {
	result, err := c.Run(ctx, d.Request(), confirm, progress)
	if err != nil {
		return nil, err
	}
	d.reset()
	return result, nil
}
