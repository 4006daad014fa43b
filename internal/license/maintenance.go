package license

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/domain"
)

// Maintenance owns the cached view of the server maintenance flag. The
// cache only changes after a successful exchange with the authority.
type Maintenance struct {
	caller  Caller
	logger  *slog.Logger
	metrics *Metrics

	// opMu serializes remote operations so a toggle reads and flips a
	// consistent state.
	opMu sync.Mutex

	mu       sync.RWMutex
	state    domain.MaintenanceState
	onChange []func(domain.MaintenanceState)
}

type maintenancePayload struct {
	MaintenanceMode bool `json:"maintenanceMode"`
}

type maintenanceResponse struct {
	MaintenanceMode *bool  `json:"maintenanceMode"`
	Message         string `json:"message"`
}

// NewMaintenance creates a Maintenance component in the Unknown state.
func NewMaintenance(caller Caller, logger *slog.Logger) *Maintenance {
	m := &Maintenance{
		caller: caller,
		logger: infrastructure.WithComponent(logger, "maintenance"),
	}
	if metrics, err := NewMetrics(otel.Meter(infrastructure.MeterName)); err == nil {
		m.metrics = metrics
	}
	return m
}

// State returns the cached state.
func (m *Maintenance) State() domain.MaintenanceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnChange registers fn to be called whenever the cached state changes.
func (m *Maintenance) OnChange(fn func(domain.MaintenanceState)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Read fetches the flag from the authority and caches it.
func (m *Maintenance) Read(ctx context.Context) (bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.read(ctx)
}

// Set asks the authority to change the flag and returns the state it
// confirmed. The confirmation comes from the set response when it carries
// the flag, otherwise from a follow-up read.
func (m *Maintenance) Set(ctx context.Context, on bool) (bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.set(ctx, on)
}

// Toggle flips the flag. An Unknown cache is resolved with a read first.
func (m *Maintenance) Toggle(ctx context.Context) (bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	current := m.State()
	if !current.Known() {
		on, err := m.read(ctx)
		if err != nil {
			return false, err
		}
		current = domain.MaintenanceStateOf(on)
	}

	return m.set(ctx, current != domain.MaintenanceActive)
}

func (m *Maintenance) read(ctx context.Context) (bool, error) {
	raw, err := m.caller.Call(ctx, http.MethodGet, config.EndpointGetMaintenance, nil)
	if err != nil {
		m.metrics.record(ctx, "maintenance_read", err)
		return false, err
	}

	var resp maintenanceResponse
	if err := authority.Decode(raw, &resp); err != nil {
		m.metrics.record(ctx, "maintenance_read", err)
		return false, err
	}
	if resp.MaintenanceMode == nil {
		err := &apierrors.UnknownError{Detail: "maintenance status response has no maintenanceMode field"}
		m.metrics.record(ctx, "maintenance_read", err)
		return false, err
	}

	m.metrics.record(ctx, "maintenance_read", nil)
	m.store(*resp.MaintenanceMode)
	return *resp.MaintenanceMode, nil
}

func (m *Maintenance) set(ctx context.Context, on bool) (bool, error) {
	raw, err := m.caller.Call(ctx, http.MethodPost, config.EndpointSetMaintenance, maintenancePayload{MaintenanceMode: on})
	if err != nil {
		m.metrics.record(ctx, "maintenance_set", err)
		return false, err
	}

	var resp maintenanceResponse
	if err := authority.Decode(raw, &resp); err != nil {
		m.metrics.record(ctx, "maintenance_set", err)
		return false, err
	}
	m.metrics.record(ctx, "maintenance_set", nil)

	if resp.MaintenanceMode == nil {
		return m.read(ctx)
	}

	m.logger.InfoContext(ctx, "maintenance mode set",
		slog.Bool("requested", on),
		slog.Bool("confirmed", *resp.MaintenanceMode),
		slog.String("message", resp.Message))

	m.store(*resp.MaintenanceMode)
	return *resp.MaintenanceMode, nil
}

func (m *Maintenance) store(on bool) {
	next := domain.MaintenanceStateOf(on)

	m.mu.Lock()
	changed := m.state != next
	m.state = next
	listeners := make([]func(domain.MaintenanceState), len(m.onChange))
	copy(listeners, m.onChange)
	m.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(next)
		}
	}
}
