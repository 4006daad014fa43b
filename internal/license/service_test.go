package license

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/shared/testutil"
	"licenseadmin/pkg/contracts/domain"
)

func newTestService(t *testing.T) (*Service, *testutil.StubAuthority, *atomic.Int32) {
	t.Helper()

	stub := testutil.NewStubAuthority(t)
	logger, _ := testutil.NewTestLogger(t)
	history := NewHistoryStore(filepath.Join(t.TempDir(), "history.json"))
	svc := NewService(stub.Client(t), history, logger)

	var refreshes atomic.Int32
	svc.OnRefresh(func(context.Context) { refreshes.Add(1) })
	return svc, stub, &refreshes
}

func TestParseCap(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantMsg string
	}{
		{name: "empty", raw: "", wantMsg: "is required"},
		{name: "blank", raw: "   ", wantMsg: "is required"},
		{name: "letters", raw: "abc", wantMsg: "must be a whole number"},
		{name: "decimal", raw: "1.5", wantMsg: "must be a whole number"},
		{name: "zero", raw: "0", wantMsg: "must be at least 1"},
		{name: "negative", raw: "-3", wantMsg: "must be at least 1"},
		{name: "one", raw: "1", want: 1},
		{name: "padded", raw: " 25 ", want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCap(tt.raw)
			if tt.wantMsg != "" {
				var v *apierrors.ValidationError
				require.ErrorAs(t, err, &v)
				assert.Equal(t, "maxUniqueIPs", v.Field)
				assert.Equal(t, tt.wantMsg, v.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid caps never reach the authority", func(t *testing.T) {
		svc, stub, refreshes := newTestService(t)

		for _, n := range []int{0, -1, -100} {
			_, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: n})
			assert.Equal(t, apierrors.KindValidation, apierrors.KindOf(err), "cap %d", n)
		}

		assert.Zero(t, stub.TotalCalls())
		assert.Zero(t, refreshes.Load())
	})

	t.Run("invalid email is a validation error", func(t *testing.T) {
		svc, stub, _ := newTestService(t)

		_, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: 1, UserEmail: "not-an-email"})
		var v *apierrors.ValidationError
		require.ErrorAs(t, err, &v)
		assert.Equal(t, "userEmail", v.Field)
		assert.Zero(t, stub.TotalCalls())
	})

	t.Run("success refreshes once and records history", func(t *testing.T) {
		svc, stub, refreshes := newTestService(t)

		key, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: 3, UserEmail: "reader@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "STUB-0001", key)
		assert.EqualValues(t, 1, refreshes.Load())

		bodies := stub.Bodies("generate-license")
		require.Len(t, bodies, 1)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(bodies[0], &payload))
		assert.EqualValues(t, 3, payload["maxUniqueIPs"])
		assert.EqualValues(t, 3, payload["maxIPs"])

		records, err := svc.History().List()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "STUB-0001", records[0].LicenseKey)
		assert.Equal(t, 3, records[0].MaxUniqueIPs)
	})

	t.Run("server message is logged", func(t *testing.T) {
		stub := testutil.NewStubAuthority(t)
		logger, handler := testutil.NewTestLogger(t)
		svc := NewService(stub.Client(t), nil, logger)

		_, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: 1})
		require.NoError(t, err)
		testutil.AssertLogContains(t, handler, slog.LevelInfo, "license generated")
		testutil.AssertLogAttr(t, handler, "server_message", "License generated successfully")
	})

	t.Run("rejection does not refresh", func(t *testing.T) {
		svc, stub, refreshes := newTestService(t)
		stub.Fail("generate-license", testutil.StubFailure{Status: http.StatusForbidden, Message: "invalid api key"})

		_, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: 1})
		var rejected *apierrors.RemoteRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, http.StatusForbidden, rejected.StatusCode)
		assert.Equal(t, "invalid api key", rejected.Message)
		assert.Zero(t, refreshes.Load())
	})

	t.Run("success false envelope is a rejection", func(t *testing.T) {
		svc, stub, _ := newTestService(t)
		stub.Fail("generate-license", testutil.StubFailure{Envelope: true, Message: "quota exhausted"})

		_, err := svc.Generate(ctx, GenerateRequest{MaxUniqueIPs: 1})
		var rejected *apierrors.RemoteRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "quota exhausted", rejected.Message)
	})
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("message is returned verbatim", func(t *testing.T) {
		svc, stub, refreshes := newTestService(t)
		stub.AddLicense(domain.License{Key: "KEY-1", MaxUniqueIPs: 1, IsValid: true})

		msg, err := svc.Invalidate(ctx, "  KEY-1 ")
		require.NoError(t, err)
		assert.Equal(t, "License invalidated successfully", msg)
		assert.EqualValues(t, 1, refreshes.Load())

		msg, err = svc.Invalidate(ctx, "KEY-1")
		require.NoError(t, err)
		assert.Equal(t, "License was already invalid", msg)
	})

	t.Run("unknown key is rejected by the authority", func(t *testing.T) {
		svc, _, refreshes := newTestService(t)

		_, err := svc.Invalidate(ctx, "MISSING")
		assert.Equal(t, apierrors.KindRejected, apierrors.KindOf(err))
		assert.Zero(t, refreshes.Load())
	})

	t.Run("empty key", func(t *testing.T) {
		svc, stub, _ := newTestService(t)

		_, err := svc.Invalidate(ctx, " ")
		assert.Equal(t, apierrors.KindValidation, apierrors.KindOf(err))
		assert.Zero(t, stub.TotalCalls())
	})
}
