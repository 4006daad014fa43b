package health

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/operations"
)

type checkerFunc func(ctx context.Context) (bool, error)

func (f checkerFunc) Read(ctx context.Context) (bool, error) { return f(ctx) }

type fixedStats operations.Stats

func (s fixedStats) Stats() operations.Stats { return operations.Stats(s) }

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

func TestLiveness(t *testing.T) {
	s := NewService(nil, nil, nil, infrastructure.NewLogger("error", io.Discard))

	status := s.Liveness()
	assert.Equal(t, StatusAlive, status.Status)
	assert.Contains(t, status.Runtime, "go_version")
	assert.Empty(t, status.Services)
}

func TestReadiness(t *testing.T) {
	healthy := checkerFunc(func(context.Context) (bool, error) { return true, nil })
	down := checkerFunc(func(context.Context) (bool, error) {
		return false, fmt.Errorf("%w: GET get-maintenance-status", apierrors.ErrUnreachable)
	})

	tests := []struct {
		name      string
		authority AuthorityChecker
		queue     fixedStats
		wantReady bool
		failing   string
	}{
		{
			name:      "all ready",
			authority: healthy,
			queue:     fixedStats{Workers: 2, QueueSize: 1, QueueCap: 4},
			wantReady: true,
		},
		{
			name:      "authority unreachable",
			authority: down,
			queue:     fixedStats{Workers: 2, QueueCap: 4},
			failing:   "authority",
		},
		{
			name:      "queue full",
			authority: healthy,
			queue:     fixedStats{Workers: 2, QueueSize: 4, QueueCap: 4},
			failing:   "queue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(tt.authority, tt.queue, fixedClients(3), infrastructure.NewLogger("error", io.Discard))

			status := s.Readiness(context.Background())
			assert.Equal(t, tt.wantReady, status.Ready())
			require.Len(t, status.Services, 3)
			if tt.failing != "" {
				assert.Equal(t, StatusNotReady, status.Services[tt.failing].Status)
				assert.NotEmpty(t, status.Services[tt.failing].Message)
			}
			assert.Equal(t, map[string]int{"clients": 3}, status.Services["websocket"].Details)
		})
	}
}

func TestReadiness_CheckTimeout(t *testing.T) {
	hung := checkerFunc(func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	s := NewService(hung, nil, nil, infrastructure.NewLogger("error", io.Discard))
	s.timeout = 20 * time.Millisecond

	status := s.Readiness(context.Background())
	assert.False(t, status.Ready())
	assert.Equal(t, map[string]string{"kind": "timeout"}, status.Services["authority"].Details)
}
