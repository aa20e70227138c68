package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledProviderUsesNoopMeters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "PROD"

	provider, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, provider.Enabled())
	require.NotNil(t, provider.Meter("test"))
	require.NoError(t, provider.Shutdown(context.Background()))
	require.Equal(t, "prod", Environment())
}

func TestStripScheme(t *testing.T) {
	require.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
