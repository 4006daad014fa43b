package authority

import (
	"encoding/json"
	"net/http"

	apierrors "licenseadmin/internal/errors"
)

// Envelope is the common part of every authority response.
type Envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Decode unmarshals a 2xx body into out after checking the success flag.
// A body with success=false is a rejection even though the status was 2xx;
// a body without the flag is accepted. out may be nil.
func Decode(raw json.RawMessage, out any) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &apierrors.UnknownError{Detail: "decode response envelope: " + err.Error(), Cause: err}
	}

	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &apierrors.RemoteRejectedError{StatusCode: http.StatusOK, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apierrors.UnknownError{Detail: "decode response: " + err.Error(), Cause: err}
	}
	return nil
}
