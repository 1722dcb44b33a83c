package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE", "")
	t.Setenv("TEMPORAL_TASK_QUEUE", "reports-q")

	cfg := LoadConfig()
	require.False(t, cfg.Enabled())
	require.Equal(t, "commercecrafted", cfg.Namespace)
	require.Equal(t, "reports-q", cfg.TaskQueue)
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestLoadTLSConfigNeedsCertAndKey(t *testing.T) {
	_, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"})
	require.Error(t, err)
}

func TestBackoff(t *testing.T) {
	base, max := 250*time.Millisecond, 2*time.Second
	require.Equal(t, 250*time.Millisecond, Backoff(base, max, 1))
	require.Equal(t, time.Second, Backoff(base, max, 3))
	require.Equal(t, max, Backoff(base, max, 10))
}

func TestIsRetryableRPC(t *testing.T) {
	require.True(t, IsRetryableRPC(status.Error(codes.Unavailable, "starting")))
	require.False(t, IsRetryableRPC(status.Error(codes.PermissionDenied, "no")))
	require.True(t, IsRetryableRPC(context.DeadlineExceeded))
	require.False(t, IsRetryableRPC(errors.New("boom")))
	require.False(t, IsRetryableRPC(nil))
}
