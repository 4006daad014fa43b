package batch

import "licenseadmin/pkg/contracts/domain"

// resultBuilder accumulates attempts in recipient order.
type resultBuilder struct {
	*domain.BatchResult
}

func newResult(n int) resultBuilder {
	return resultBuilder{&domain.BatchResult{
		FailedRecipients:    []string{},
		IssuedWithoutNotice: []string{},
		Attempts:            make([]domain.BatchAttempt, 0, n),
	}}
}

func (r resultBuilder) add(a domain.BatchAttempt) {
	r.Attempts = append(r.Attempts, a)

	if a.Succeeded() {
		r.Succeeded++
		return
	}

	r.Failed++
	r.FailedRecipients = append(r.FailedRecipients, a.Recipient)
	if a.FailedAt == domain.StageNotify && a.LicenseKey != "" {
		r.IssuedWithoutNotice = append(r.IssuedWithoutNotice, a.Recipient)
	}
}
