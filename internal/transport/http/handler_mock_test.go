package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/pkg/contracts/domain"
)

type mockLicenseService struct {
	mock.Mock
}

func (m *mockLicenseService) Generate(ctx context.Context, req license.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLicenseService) Invalidate(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockLicenseService) ListLicenses(ctx context.Context) license.Listing[domain.License] {
	return m.Called(ctx).Get(0).(license.Listing[domain.License])
}

func (m *mockLicenseService) ListUsers(ctx context.Context) license.Listing[domain.User] {
	return m.Called(ctx).Get(0).(license.Listing[domain.User])
}

func (m *mockLicenseService) History() *license.HistoryStore {
	return nil
}

type mockMaintenance struct {
	mock.Mock
}

func (m *mockMaintenance) State() domain.MaintenanceState {
	return m.Called().Get(0).(domain.MaintenanceState)
}

func (m *mockMaintenance) Read(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockMaintenance) Set(ctx context.Context, on bool) (bool, error) {
	args := m.Called(ctx, on)
	return args.Bool(0), args.Error(1)
}

func (m *mockMaintenance) Toggle(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestLicenseHandler_ListFailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "timeout",
			err:        fmt.Errorf("%w: GET licenses", apierrors.ErrTimeout),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   apierrors.TypeTimeout,
		},
		{
			name:       "unreachable",
			err:        fmt.Errorf("%w: GET licenses", apierrors.ErrUnreachable),
			wantStatus: http.StatusBadGateway,
			wantType:   apierrors.TypeUnreachable,
		},
		{
			name:       "unknown",
			err:        &apierrors.UnknownError{Detail: "tls handshake"},
			wantStatus: http.StatusInternalServerError,
			wantType:   apierrors.TypeInternal,
		},
	}

	logger := infrastructure.NewLogger("error", io.Discard)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockLicenseService)
			svc.On("ListLicenses", mock.Anything).Return(license.NewListing[domain.License](nil, tt.err))

			h := NewLicenseHandler(svc, nil, apierrors.NewErrorHandler(logger, false), logger)
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/api/licenses", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := problemOf(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, string(apierrors.KindOf(tt.err)), body["kind"])
			svc.AssertExpectations(t)
		})
	}
}

func TestLicenseHandler_EmptyUsers(t *testing.T) {
	logger := infrastructure.NewLogger("error", io.Discard)
	svc := new(mockLicenseService)
	svc.On("ListUsers", mock.Anything).Return(license.NewListing([]domain.User{}, nil))

	h := NewLicenseHandler(svc, nil, apierrors.NewErrorHandler(logger, false), logger)
	rec := httptest.NewRecorder()
	h.Users(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := problemOf(t, rec)
	assert.Equal(t, "empty", body["outcome"])
	assert.Equal(t, emptyUsersText, body["message"])
}

func TestLicenseHandler_HistoryDisabled(t *testing.T) {
	logger := infrastructure.NewLogger("error", io.Discard)
	h := NewLicenseHandler(new(mockLicenseService), nil, apierrors.NewErrorHandler(logger, false), logger)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":[]}`, rec.Body.String())
}

func TestMaintenanceHandler_ReadFailure(t *testing.T) {
	logger := infrastructure.NewLogger("error", io.Discard)
	m := new(mockMaintenance)
	m.On("Read", mock.Anything).Return(false, fmt.Errorf("%w: GET get-maintenance-status", apierrors.ErrUnreachable))

	h := NewMaintenanceHandler(m, nil, apierrors.NewErrorHandler(logger, false), logger)
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/maintenance", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apierrors.TypeUnreachable, problemOf(t, rec)["type"])
	m.AssertNotCalled(t, "State")
}

func TestMaintenanceHandler_Cached(t *testing.T) {
	logger := infrastructure.NewLogger("error", io.Discard)
	m := new(mockMaintenance)
	m.On("State").Return(domain.MaintenanceActive)

	h := NewMaintenanceHandler(m, nil, apierrors.NewErrorHandler(logger, false), logger)
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/maintenance?cached=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maintenanceMode":true,"state":"active"}`, rec.Body.String())
	m.AssertNotCalled(t, "Read", mock.Anything)
}
