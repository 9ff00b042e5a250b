package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `addr = ":9090"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, Default().MaxRetry, cfg.MaxRetry)
	assert.Equal(t, Default().ExecutorMailboxSize, cfg.ExecutorMailboxSize)
}

func TestLoadOverridesNestedTables(t *testing.T) {
	path := writeConfig(t, `
addr = ":7070"
max_retry = 5

[grpc]
keepalive_time_seconds = 30

[otel]
enabled = true
collector_endpoint = "localhost:4317"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, cfg.MaxRetry)
	assert.Equal(t, 30, cfg.GRPC.KeepaliveTimeSeconds)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTel.CollectorEndpoint)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	cfg := Default()
	cfg.Addr = ""
	require.Error(t, cfg.validate())
}

func TestValidateRejectsZeroMaxRetry(t *testing.T) {
	cfg := Default()
	cfg.MaxRetry = 0
	require.Error(t, cfg.validate())
}

func TestValidateRejectsOTelEnabledWithoutEndpoint(t *testing.T) {
	cfg := Default()
	cfg.OTel.Enabled = true
	cfg.OTel.CollectorEndpoint = ""
	require.Error(t, cfg.validate())
}

func TestBrokerConfigProjectsFeederStagger(t *testing.T) {
	cfg := Default()
	cfg.FeederStaggerMillis = 250
	bc := cfg.BrokerConfig()
	assert.Equal(t, 250, int(bc.FeederStagger.Milliseconds()))
}
