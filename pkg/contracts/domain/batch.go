package domain

// BatchRequest describes one batch issuance: one license and one
// notification per recipient.
type BatchRequest struct {
	Recipients   []string `json:"recipients" validate:"required,min=1,dive,required"`
	Subject      string   `json:"subject" validate:"required"`
	BodyTemplate string   `json:"bodyTemplate" validate:"required"`
	MaxIPs       int      `json:"maxIPs" validate:"min=1"`
}

// BatchStage names the step at which a recipient failed.
type BatchStage string

const (
	StageGenerate BatchStage = "generate"
	StageNotify   BatchStage = "notify"
)

// BatchAttempt is the outcome for a single recipient.
type BatchAttempt struct {
	Recipient  string     `json:"recipient"`
	LicenseKey string     `json:"licenseKey,omitempty"`
	FailedAt   BatchStage `json:"failedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"errorKind,omitempty"`
}

// Succeeded reports whether both generation and notification went through.
func (a BatchAttempt) Succeeded() bool {
	return a.FailedAt == ""
}

// BatchResult aggregates a finished batch. IssuedWithoutNotice lists the
// recipients that hold a license but never received the email.
type BatchResult struct {
	Succeeded           int            `json:"succeeded"`
	Failed              int            `json:"failed"`
	FailedRecipients    []string       `json:"failedRecipients"`
	IssuedWithoutNotice []string       `json:"issuedWithoutNotice"`
	Attempts            []BatchAttempt `json:"attempts"`
}

// Total is the number of recipients attempted.
func (r BatchResult) Total() int {
	return r.Succeeded + r.Failed
}
