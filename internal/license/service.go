package license

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"

	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/validation"
)

// Caller is the transport the operations run on. *authority.Client
// satisfies it.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, payload any) (json.RawMessage, error)
}

// RefreshHook is invoked once after each operation that changes the
// license listing (generate, invalidate).
type RefreshHook func(ctx context.Context)

// Service runs license operations against the authority.
type Service struct {
	caller    Caller
	history   *HistoryStore
	validator *validation.Validator
	logger    *slog.Logger
	metrics   *Metrics

	hooksMu sync.RWMutex
	hooks   []RefreshHook
}

// NewService creates a Service. history may be nil to disable the local log.
func NewService(caller Caller, history *HistoryStore, logger *slog.Logger) *Service {
	metrics, err := NewMetrics(otel.Meter(infrastructure.MeterName))
	if err != nil {
		// instrument creation only fails on invalid names
		metrics = nil
	}

	return &Service{
		caller:    caller,
		history:   history,
		validator: validation.New(),
		logger:    infrastructure.WithComponent(logger, "license"),
		metrics:   metrics,
	}
}

// OnRefresh registers a hook fired after the listing changed.
func (s *Service) OnRefresh(hook RefreshHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hooksMu.Unlock()
}

func (s *Service) fireRefresh(ctx context.Context) {
	s.hooksMu.RLock()
	hooks := make([]RefreshHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx)
	}
}

// History returns the issuance history store, which may be nil.
func (s *Service) History() *HistoryStore {
	return s.history
}
