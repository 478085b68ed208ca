package telemetry_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/knowledged/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := telemetry.Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.InDelta(t, 1.0, cfg.SampleRatio, 1e-9)
	assert.False(t, cfg.Enabled)
}

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{}, "test", "dev", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NoError(t, tel.Shutdown(context.Background()))
}
