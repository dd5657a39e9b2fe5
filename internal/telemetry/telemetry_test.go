package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitDisabled(t *testing.T) {
	p, err := Init(Config{Enabled: false}, "test", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)

	// Shutdown on noop providers is a no-op.
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownNil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
