package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docagents/substrate/config"
	"github.com/docagents/substrate/types"
)

func TestBuild_WiresEveryAgentKind(t *testing.T) {
	cfg := config.Default()

	substrate, err := Build(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NotNil(t, substrate)

	defer substrate.Pool.Close()

	assert.NotNil(t, substrate.Limiter)
	assert.NotNil(t, substrate.Breaker)
	assert.NotNil(t, substrate.Retry)
	assert.NotNil(t, substrate.Pool)
	assert.NotNil(t, substrate.Meter)
	assert.NotNil(t, substrate.Tokenizer)
	assert.NotNil(t, substrate.Dispatcher)

	kinds := []types.AgentKind{
		types.KindStructureExtractor,
		types.KindSummarizer,
		types.KindConceptExplainer,
		types.KindCitationVerifier,
		types.KindMetadataEnhancer,
		types.KindDiscovery,
	}
	for _, kind := range kinds {
		task := types.NewAgentTask(kind, types.Value{})
		result := substrate.Dispatcher.Dispatch(t.Context(), task)
		require.NotNil(t, result, "kind %s must have a registered primary agent", kind)
	}
}

func TestBuild_SkipsLocalFallbackWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.LocalProviderEnabled = false

	substrate, err := Build(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer substrate.Pool.Close()

	task := types.NewAgentTask(types.KindSummarizer, types.Value{})
	result := substrate.Dispatcher.Dispatch(t.Context(), task)
	assert.False(t, result.UsedFallback)
}
