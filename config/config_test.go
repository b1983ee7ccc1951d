package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/types"
)

func TestDefault_MatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()

	require.Len(t, cfg.Providers, 4)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 4, cfg.Pool.CoreSize)
	assert.Equal(t, 16, cfg.Pool.MaxSize)
	assert.True(t, cfg.LocalProviderEnabled)

	local, ok := cfg.ProviderByKind(types.ProviderLocal)
	require.True(t, ok)
	assert.Equal(t, 0, local.RequestsPerMinute)
}

func TestProviderEntry_APIKey(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "secret-value")
	entry := ProviderEntry{APIKeyEnv: "TEST_PROVIDER_KEY"}
	assert.Equal(t, "secret-value", entry.APIKey())

	empty := ProviderEntry{}
	assert.Equal(t, "", empty.APIKey())
}

func TestLoad_OverlaysYAMLOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
retry:
  max_attempts: 7
local_provider_enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.LocalProviderEnabled)
	// Fields not present in the YAML keep their Default() values.
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestProviderByKind_UnknownReturnsFalse(t *testing.T) {
	cfg := Default()
	_, ok := cfg.ProviderByKind(types.Provider("does-not-exist"))
	assert.False(t, ok)
}
