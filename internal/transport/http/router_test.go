package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"licenseadmin/internal/batch"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/internal/notify"
	"licenseadmin/internal/operations"
	"licenseadmin/internal/shared/testutil"
	"licenseadmin/pkg/contracts"
	api "licenseadmin/pkg/contracts/api/v1"
	"licenseadmin/pkg/contracts/domain"
)

const testToken = "admin-secret"

type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) messages() []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notify.Message(nil), o.sent...)
}

type apiFixture struct {
	stub   *testutil.StubAuthority
	outbox *outbox
	server *httptest.Server
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	logger := infrastructure.NewLogger("error", io.Discard)
	stub := testutil.NewStubAuthority(t)
	client := stub.Client(t)

	licenses := license.NewService(client, license.NewHistoryStore(filepath.Join(t.TempDir(), "history.json")), logger)
	maintenance := license.NewMaintenance(client, logger)
	box := &outbox{}
	coordinator := batch.NewCoordinator(licenses, box, config.BatchConfig{}, logger)

	queue := operations.NewQueue(config.WorkersConfig{Count: 2, QueueSize: 8}, operations.NewMemoryJobStore(0), logger)
	queue.Start(context.Background())
	t.Cleanup(func() { _ = queue.Stop(5 * time.Second) })

	cfg := config.Default()
	cfg.Server.AdminToken = testToken
	cfg.Server.RateLimit.Enabled = false

	srv := httptest.NewServer(NewRouter(RouterDeps{
		Server:      cfg.Server,
		Batch:       cfg.Batch,
		Licenses:    licenses,
		Maintenance: maintenance,
		Batches:     coordinator,
		Queue:       queue,
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)

	return &apiFixture{stub: stub, outbox: box, server: srv}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(data)
		}
		reader = bytes.NewBufferString(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *apiFixture) decode(t *testing.T, method, path string, body any, wantStatus int) map[string]any {
	t.Helper()
	resp, data := f.do(t, method, path, body)
	require.Equal(t, wantStatus, resp.StatusCode, string(data))

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

// submit posts body, expects 202 and waits for the job to finish.
func (f *apiFixture) submit(t *testing.T, method, path string, body any) domain.JobSnapshot {
	t.Helper()

	accepted := f.decode(t, method, path, body, http.StatusAccepted)
	job, ok := accepted["job"].(map[string]any)
	require.True(t, ok)
	id, ok := job["id"].(string)
	require.True(t, ok)
	assert.Equal(t, "/api/jobs/"+id, accepted["status_url"])

	var snap domain.JobSnapshot
	require.Eventually(t, func() bool {
		_, data := f.do(t, http.MethodGet, "/api/jobs/"+id, nil)
		snap = domain.JobSnapshot{}
		return json.Unmarshal(data, &snap) == nil && snap.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)
	return snap
}

func resultMap(t *testing.T, snap domain.JobSnapshot) map[string]any {
	t.Helper()
	require.Equal(t, domain.JobStatusCompleted, snap.Status, snap.Error)
	m, ok := snap.Result.(map[string]any)
	require.True(t, ok, "result %T", snap.Result)
	return m
}

func TestRouter_Auth(t *testing.T) {
	f := newAPI(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, contracts.Version, health.Build.Version)
	assert.Equal(t, contracts.APIVersion, health.Build.APIVersion)

	resp, err = http.Get(f.server.URL + "/api/licenses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.stub.TotalCalls())
}

func TestRouter_NotFound(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodGet, "/api/nothing-here", nil, http.StatusNotFound)
	assert.Equal(t, apierrors.TypeNotFound, body["type"])

	body = f.decode(t, http.MethodGet, "/api/jobs/unknown", nil, http.StatusNotFound)
	assert.Equal(t, "JOB_NOT_FOUND", body["error_code"])
}

func TestGenerate(t *testing.T) {
	f := newAPI(t)

	snap := f.submit(t, http.MethodPost, "/api/licenses", map[string]any{
		"maxUniqueIPs": "3",
		"userName":     "Reader",
		"userEmail":    "reader@example.com",
	})
	assert.Equal(t, domain.JobKindGenerate, snap.Kind)
	assert.Equal(t, "STUB-0001", resultMap(t, snap)["licenseKey"])

	licenses := f.stub.Licenses()
	require.Len(t, licenses, 1)
	assert.Equal(t, 3, licenses[0].MaxUniqueIPs)

	history := f.decode(t, http.MethodGet, "/api/history", nil, http.StatusOK)
	records, ok := history["records"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 1)
}

func TestGenerate_NumericCap(t *testing.T) {
	f := newAPI(t)

	snap := f.submit(t, http.MethodPost, "/api/licenses", `{"maxUniqueIPs": 2}`)
	assert.Equal(t, "STUB-0001", resultMap(t, snap)["licenseKey"])
}

func TestGenerate_ValidationNeverReachesAuthority(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "zero cap", body: `{"maxUniqueIPs":"0"}`, field: "maxUniqueIPs"},
		{name: "negative cap", body: `{"maxUniqueIPs":-2}`, field: "maxUniqueIPs"},
		{name: "text cap", body: `{"maxUniqueIPs":"three"}`, field: "maxUniqueIPs"},
		{name: "missing cap", body: `{}`, field: "maxUniqueIPs"},
		{name: "bad email", body: `{"maxUniqueIPs":"1","userEmail":"not-an-email"}`, field: "userEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t)

			body := f.decode(t, http.MethodPost, "/api/licenses", tt.body, http.StatusBadRequest)
			assert.Equal(t, apierrors.TypeValidation, body["type"])
			assert.Equal(t, string(apierrors.KindValidation), body["kind"])
			assert.Contains(t, body["detail"], tt.field)
			assert.Zero(t, f.stub.TotalCalls())
		})
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodPost, "/api/licenses", `{"maxUniqueIPs":"1","color":"red"}`, http.StatusBadRequest)
	assert.Equal(t, "INVALID_REQUEST", body["error_code"])
	assert.Zero(t, f.stub.TotalCalls())
}

func TestInvalidate(t *testing.T) {
	f := newAPI(t)
	f.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 1, IsValid: true})

	body := f.decode(t, http.MethodPost, "/api/licenses/invalidate", map[string]string{"license": "   "}, http.StatusBadRequest)
	assert.Equal(t, apierrors.TypeValidation, body["type"])

	snap := f.submit(t, http.MethodPost, "/api/licenses/invalidate", map[string]string{"license": " KEY-1 "})
	assert.Equal(t, "License invalidated successfully", resultMap(t, snap)["message"])

	snap = f.submit(t, http.MethodPost, "/api/licenses/invalidate", map[string]string{"license": "KEY-1"})
	assert.Equal(t, "License was already invalid", resultMap(t, snap)["message"])

	snap = f.submit(t, http.MethodPost, "/api/licenses/invalidate", map[string]string{"license": "NOPE"})
	assert.Equal(t, domain.JobStatusFailed, snap.Status)
	assert.Equal(t, string(apierrors.KindRejected), snap.ErrorKind)
	assert.Contains(t, snap.Error, "License not found")
}

func TestListLicenses(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodGet, "/api/licenses", nil, http.StatusOK)
	assert.Equal(t, "empty", body["outcome"])
	assert.Equal(t, emptyLicensesText, body["message"])
	assert.Equal(t, []any{}, body["licenses"])

	f.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 2, UsedIPs: []string{"10.0.0.1"}, IsValid: true})
	body = f.decode(t, http.MethodGet, "/api/licenses", nil, http.StatusOK)
	assert.Equal(t, "loaded", body["outcome"])
	assert.NotContains(t, body, "message")
	assert.Len(t, body["licenses"], 1)

	f.stub.Fail("licenses", testutil.StubFailure{Status: http.StatusInternalServerError, Message: "sheet offline"})
	body = f.decode(t, http.MethodGet, "/api/licenses", nil, http.StatusBadGateway)
	assert.Equal(t, apierrors.TypeRejected, body["type"])
	assert.Equal(t, "sheet offline", body["detail"])
}

func TestListUsers_EmailsShape(t *testing.T) {
	f := newAPI(t)
	f.stub.AddUser(domain.User{Email: "b@x.com"})
	f.stub.AddUser(domain.User{Email: "a@x.com"})
	f.stub.AddUser(domain.User{Email: "broken"})
	f.stub.ServeEmailsOnly()

	body := f.decode(t, http.MethodGet, "/api/users", nil, http.StatusOK)
	assert.Equal(t, "loaded", body["outcome"])
	assert.Len(t, body["users"], 3)
	assert.Equal(t, []any{"a@x.com", "b@x.com"}, body["emails"])
}

func TestMaintenance(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodGet, "/api/maintenance?cached=true", nil, http.StatusOK)
	assert.Equal(t, "unknown", body["state"])

	body = f.decode(t, http.MethodPut, "/api/maintenance", `{}`, http.StatusBadRequest)
	assert.Equal(t, apierrors.TypeValidation, body["type"])

	snap := f.submit(t, http.MethodPut, "/api/maintenance", map[string]bool{"maintenanceMode": true})
	assert.Equal(t, true, resultMap(t, snap)["maintenanceMode"])
	assert.True(t, f.stub.Maintenance())

	body = f.decode(t, http.MethodGet, "/api/maintenance", nil, http.StatusOK)
	assert.Equal(t, "active", body["state"])

	snap = f.submit(t, http.MethodPost, "/api/maintenance/toggle", nil)
	assert.Equal(t, "inactive", resultMap(t, snap)["state"])
	assert.False(t, f.stub.Maintenance())
}

func TestMaintenance_FailureKeepsState(t *testing.T) {
	f := newAPI(t)
	f.stub.SetMaintenance(true)
	f.decode(t, http.MethodGet, "/api/maintenance", nil, http.StatusOK)

	f.stub.Fail("set-maintenance-mode", testutil.StubFailure{Status: http.StatusUnauthorized, Message: "bad key"})
	snap := f.submit(t, http.MethodPut, "/api/maintenance", map[string]bool{"maintenanceMode": false})
	assert.Equal(t, domain.JobStatusFailed, snap.Status)

	body := f.decode(t, http.MethodGet, "/api/maintenance?cached=true", nil, http.StatusOK)
	assert.Equal(t, "active", body["state"])
}

func TestBatch(t *testing.T) {
	f := newAPI(t)
	request := map[string]any{
		"recipients":   []string{" a@x.com", "b@x.com", "a@x.com", ""},
		"subject":      "Your ebook",
		"bodyTemplate": "Hello [userName], key: [licenseKey]",
	}

	preview := f.decode(t, http.MethodPost, "/api/batches/preview", request, http.StatusOK)
	assert.Equal(t, []any{"a@x.com", "b@x.com"}, preview["recipients"])
	assert.Equal(t, true, preview["confirmationRequired"])
	assert.Equal(t, "Hello a, key: "+batch.SampleLicenseKey, preview["sampleBody"])

	body := f.decode(t, http.MethodPost, "/api/batches", request, http.StatusPreconditionRequired)
	assert.Equal(t, "CONFIRMATION_REQUIRED", body["error_code"])
	assert.Zero(t, f.stub.TotalCalls())

	request["confirmed"] = true
	snap := f.submit(t, http.MethodPost, "/api/batches", request)
	result := resultMap(t, snap)
	assert.EqualValues(t, 2, result["succeeded"])
	assert.EqualValues(t, 0, result["failed"])

	sent := f.outbox.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "a@x.com", sent[0].To)
	assert.Equal(t, "Hello a, key: STUB-0001", sent[0].HTMLBody)
	assert.Equal(t, 1, f.stub.Licenses()[0].MaxUniqueIPs, "default cap applies")
}

func TestBatch_PartialFailure(t *testing.T) {
	f := newAPI(t)
	f.stub.RejectEmail("b@x.com", "quota exceeded")

	snap := f.submit(t, http.MethodPost, "/api/batches", map[string]any{
		"recipients":   []string{"a@x.com", "b@x.com"},
		"subject":      "Your ebook",
		"bodyTemplate": "key: {{licenseKey}}",
		"maxIPs":       2,
		"confirmed":    true,
	})
	result := resultMap(t, snap)
	assert.EqualValues(t, 1, result["succeeded"])
	assert.Equal(t, []any{"b@x.com"}, result["failedRecipients"])
	assert.Len(t, f.outbox.messages(), 1)
}

func TestBatch_Validation(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodPost, "/api/batches", map[string]any{
		"recipients":   []string{"", "  "},
		"subject":      "s",
		"bodyTemplate": "b",
	}, http.StatusBadRequest)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
	assert.Zero(t, f.stub.TotalCalls())
}

func TestBroadcast(t *testing.T) {
	f := newAPI(t)

	body := f.decode(t, http.MethodPost, "/api/broadcasts", map[string]any{
		"recipients": []string{"a@x.com", "b@x.com"},
		"subject":    "News",
		"htmlBody":   "<p>Chapter 3 is out</p>",
	}, http.StatusPreconditionRequired)
	assert.Equal(t, "CONFIRMATION_REQUIRED", body["error_code"])

	snap := f.submit(t, http.MethodPost, "/api/broadcasts", map[string]any{
		"recipients": []string{"a@x.com", "b@x.com"},
		"subject":    "News",
		"htmlBody":   "<p>Chapter 3 is out</p>",
		"confirmed":  true,
	})
	assert.Equal(t, domain.JobKindBroadcast, snap.Kind)
	assert.EqualValues(t, 2, resultMap(t, snap)["succeeded"])
	assert.Zero(t, f.stub.TotalCalls())
	assert.Len(t, f.outbox.messages(), 2)
}

func TestExport(t *testing.T) {
	f := newAPI(t)
	f.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 2, UsedIPs: []string{"10.0.0.1"}, IsValid: true})

	resp, data := f.do(t, http.MethodGet, "/api/licenses/export?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "KEY-1", records[1][0])

	resp, data = f.do(t, http.MethodGet, "/api/licenses/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Licenses")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	body := f.decode(t, http.MethodGet, "/api/licenses/export?format=pdf", nil, http.StatusBadRequest)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
}

func TestJobsList(t *testing.T) {
	f := newAPI(t)
	f.submit(t, http.MethodPost, "/api/licenses", `{"maxUniqueIPs":1}`)
	f.submit(t, http.MethodPost, "/api/licenses/invalidate", `{"license":"STUB-0001"}`)

	body := f.decode(t, http.MethodGet, "/api/jobs?kind=generate", nil, http.StatusOK)
	jobs, ok := body["jobs"].([]any)
	require.True(t, ok)
	assert.Len(t, jobs, 1)
	assert.Contains(t, body, "queue")

	body = f.decode(t, http.MethodGet, "/api/jobs?limit=x", nil, http.StatusBadRequest)
	assert.Equal(t, apierrors.TypeValidation, body["type"])
}
