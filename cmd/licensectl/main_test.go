package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseadmin/internal/shared/testutil"
	"licenseadmin/pkg/contracts/domain"
)

type result struct {
	code   int
	stdout string
	stderr string
}

type harness struct {
	stub    *testutil.StubAuthority
	config  string
	dataDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stub := testutil.NewStubAuthority(t)
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	cfg := fmt.Sprintf("authority:\n  base_url: %s\n  timeout: 2s\npaths:\n  data_dir: %s\nmail:\n  provider: none\n", stub.URL(), dataDir)
	path := filepath.Join(dir, "licenseadmin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return &harness{stub: stub, config: path, dataDir: dataDir}
}

func (h *harness) run(stdin string, args ...string) result {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", h.config}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), nil, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "Commands:")
	assert.Contains(t, stderr.String(), "broadcast")

	stderr.Reset()
	code = run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
}

func TestGenerate(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "generate", "-ips", "3", "-email", "reader@example.com")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "STUB-0001\n", r.stdout)
	assert.Equal(t, 3, h.stub.Licenses()[0].MaxUniqueIPs)

	r = h.run("", "history")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "STUB-0001")
}

func TestGenerate_InvalidCap(t *testing.T) {
	tests := []struct {
		name string
		ips  string
	}{
		{name: "zero", ips: "0"},
		{name: "negative", ips: "-1"},
		{name: "text", ips: "many"},
		{name: "blank", ips: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			r := h.run("", "generate", "-ips", tt.ips)
			assert.Equal(t, exitError, r.code)
			assert.Contains(t, r.stderr, "Invalid input: maxUniqueIPs")
			assert.Zero(t, h.stub.TotalCalls())
		})
	}
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t)
	h.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 1, IsValid: true})

	r := h.run("", "invalidate", "KEY-1")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "License invalidated successfully\n", r.stdout)

	r = h.run("", "invalidate", "MISSING")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "The license server rejected the request: License not found")

	r = h.run("", "invalidate")
	assert.Equal(t, exitUsage, r.code)
}

func TestLicenses(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "licenses")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "No licenses found.\n", r.stdout)

	h.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 2, UsedIPs: []string{"10.0.0.1"}, IsValid: true})
	r = h.run("", "licenses")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "KEY-1")
	assert.Contains(t, r.stdout, "10.0.0.1")
	assert.Contains(t, r.stdout, "N/A")

	h.stub.Fail("licenses", testutil.StubFailure{Status: 500, Message: "sheet offline"})
	r = h.run("", "licenses")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "sheet offline")
	assert.Empty(t, r.stdout)
}

func TestEmails(t *testing.T) {
	h := newHarness(t)
	h.stub.AddUser(domain.User{Email: "zed@x.com"})
	h.stub.AddUser(domain.User{Email: "amy@x.com"})
	h.stub.AddUser(domain.User{Email: "ZED@x.com"})
	h.stub.AddUser(domain.User{Email: "nope"})

	r := h.run("", "emails")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "amy@x.com\nzed@x.com\n", r.stdout)
}

func TestMaintenance(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "maintenance", "on")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "Maintenance mode: active\n", r.stdout)
	assert.True(t, h.stub.Maintenance())

	r = h.run("", "maintenance", "toggle")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "Maintenance mode: inactive\n", r.stdout)

	r = h.run("", "maintenance")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "Maintenance mode: inactive\n", r.stdout)

	r = h.run("", "maintenance", "sideways")
	assert.Equal(t, exitUsage, r.code)
}

func TestBatch_Declined(t *testing.T) {
	h := newHarness(t)

	r := h.run("n\n", "batch", "-to", "a@x.com,b@x.com", "-body", "key [licenseKey]")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stdout, "to 2 recipients")
	assert.Contains(t, r.stderr, "Cancelled")
	assert.Zero(t, h.stub.TotalCalls())
}

func TestBatch_DryRun(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "batch", "-to", "amy@x.com; bob@x.com", "-body", "Hi [userName], key [licenseKey]", "-dry-run")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "2 recipients: amy@x.com, bob@x.com")
	assert.Contains(t, r.stdout, "Hi amy, key XXXX-XXXX-XXXX-XXXX")
	assert.Zero(t, h.stub.TotalCalls())
}

func TestBatch_DefaultBody(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "batch", "-to", "amy@x.com", "-dry-run")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Hello amy!")
	assert.Contains(t, r.stdout, "<strong>XXXX-XXXX-XXXX-XXXX</strong>")
}

func TestBatch_BodyWithoutKey(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "batch", "-to", "amy@x.com", "-body", "<p>Thanks [userName]</p>", "-yes")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "bodyTemplate")
	assert.Zero(t, h.stub.TotalCalls())
}

func TestBatch_MailDisabled(t *testing.T) {
	h := newHarness(t)

	r := h.run("y\n", "batch", "-to", "a@x.com,b@x.com", "-body", "key [licenseKey]", "-ips", "2")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stdout, "Done: 0 succeeded, 2 failed.")
	assert.Contains(t, r.stdout, "Issued without email: a@x.com, b@x.com")
	assert.Contains(t, r.stderr, "2 of 2 recipients failed")

	// licenses are issued even though the mail could not go out
	require.Len(t, h.stub.Licenses(), 2)
	assert.Equal(t, 2, h.stub.Licenses()[0].MaxUniqueIPs)
}

func TestBroadcast_Validation(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "broadcast", "-to", "a@x.com", "-subject", "News")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "htmlBody")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 2, IsValid: true})
	out := filepath.Join(t.TempDir(), "licenses")

	r := h.run("", "export", "-format", "xlsx", "-out", out)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Wrote 1 rows to "+out+".xlsx")
	assert.FileExists(t, out+".xlsx")

	r = h.run("", "export", "-what", "invoices")
	assert.Equal(t, exitUsage, r.code)
}
