package license

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
)

type invalidatePayload struct {
	License string `json:"license"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Invalidate revokes key and returns the authority's message verbatim.
// Whether the key existed or was already invalid is the authority's call;
// the request is never retried.
func (s *Service) Invalidate(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		err := apierrors.NewValidationError("license", "is required")
		s.metrics.record(ctx, "invalidate", err)
		return "", err
	}

	raw, err := s.caller.Call(ctx, http.MethodPost, config.EndpointInvalidateLicense, invalidatePayload{License: key})
	if err != nil {
		s.metrics.record(ctx, "invalidate", err)
		return "", err
	}

	var resp messageResponse
	if err := authority.Decode(raw, &resp); err != nil {
		s.metrics.record(ctx, "invalidate", err)
		return "", err
	}

	s.metrics.record(ctx, "invalidate", nil)
	s.logger.InfoContext(ctx, "license invalidated",
		slog.String("license", infrastructure.MaskKey(key)),
		slog.String("message", resp.Message))

	s.fireRefresh(ctx)
	return resp.Message, nil
}
