package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/operations"
	api "licenseadmin/pkg/contracts/api/v1"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. Unknown fields are rejected so a
// misspelled option never silently falls back to its default.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return apierrors.InvalidRequestWithError(fmt.Errorf("request body is empty"))
		}
		return apierrors.InvalidRequestWithError(err)
	}
	return nil
}

// accepted answers 202 with the job snapshot and where to poll it.
func accepted(w http.ResponseWriter, r *http.Request, job *operations.Job) {
	w.Header().Set("Location", "/api/jobs/"+job.ID())
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.JobAccepted{
		Job:       job.Snapshot(),
		StatusURL: "/api/jobs/" + job.ID(),
	})
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
