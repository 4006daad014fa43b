package license

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/domain"
)

// GenerateRequest is a validated request for one new license.
type GenerateRequest struct {
	MaxUniqueIPs int    `json:"maxUniqueIPs" validate:"min=1"`
	UserName     string `json:"userName,omitempty"`
	UserEmail    string `json:"userEmail,omitempty" validate:"omitempty,email"`
}

// generatePayload is the wire body. Both cap spellings are sent because
// deployed authorities read one or the other.
type generatePayload struct {
	MaxUniqueIPs int    `json:"maxUniqueIPs"`
	MaxIPs       int    `json:"maxIPs"`
	UserName     string `json:"userName,omitempty"`
	UserEmail    string `json:"userEmail,omitempty"`
}

type generateResponse struct {
	LicenseKey string `json:"licenseKey"`
	Message    string `json:"message"`
}

// ParseCap parses the per-license IP cap as typed by an operator.
func ParseCap(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apierrors.NewValidationError("maxUniqueIPs", "is required")
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.NewValidationError("maxUniqueIPs", "must be a whole number")
	}
	if n < 1 {
		return 0, apierrors.NewValidationError("maxUniqueIPs", "must be at least 1")
	}
	return n, nil
}

// NewGenerateRequest builds a request from raw operator input.
func NewGenerateRequest(rawCap, userName, userEmail string) (GenerateRequest, error) {
	n, err := ParseCap(rawCap)
	if err != nil {
		return GenerateRequest{}, err
	}
	return GenerateRequest{
		MaxUniqueIPs: n,
		UserName:     strings.TrimSpace(userName),
		UserEmail:    strings.TrimSpace(userEmail),
	}, nil
}

// Generate asks the authority for a new license and returns its key.
// Invalid input is reported without any network call. On success the
// refresh hooks fire exactly once and a history record is appended.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.record(ctx, "generate", err)
		return "", err
	}

	raw, err := s.caller.Call(ctx, http.MethodPost, config.EndpointGenerateLicense, generatePayload{
		MaxUniqueIPs: req.MaxUniqueIPs,
		MaxIPs:       req.MaxUniqueIPs,
		UserName:     req.UserName,
		UserEmail:    req.UserEmail,
	})
	if err != nil {
		s.metrics.record(ctx, "generate", err)
		return "", err
	}

	var resp generateResponse
	if err := authority.Decode(raw, &resp); err != nil {
		s.metrics.record(ctx, "generate", err)
		return "", err
	}
	if resp.LicenseKey == "" {
		err := &apierrors.UnknownError{Detail: "authority reported success without a license key"}
		s.metrics.record(ctx, "generate", err)
		return "", err
	}

	s.metrics.record(ctx, "generate", nil)
	s.afterGenerate(ctx, resp.LicenseKey, req.MaxUniqueIPs, resp.Message)
	return resp.LicenseKey, nil
}

func (s *Service) afterGenerate(ctx context.Context, key string, maxIPs int, serverMessage string) {
	attrs := []any{
		slog.String("license", infrastructure.MaskKey(key)),
		slog.Int("max_unique_ips", maxIPs),
	}
	if serverMessage != "" {
		attrs = append(attrs, slog.String("server_message", serverMessage))
	}
	s.logger.InfoContext(ctx, "license generated", attrs...)

	if s.history != nil {
		rec := domain.HistoryRecord{
			LicenseKey:   key,
			MaxUniqueIPs: maxIPs,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.history.Append(rec); err != nil {
			s.logger.WarnContext(ctx, "failed to append license history",
				slog.String("error", err.Error()))
		}
	}

	s.fireRefresh(ctx)
}
