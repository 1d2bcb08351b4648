package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "placescout.db", cfg.Store.DatabaseURL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "gemini-2.0-flash", cfg.GenAI.FastModel)
	assert.Equal(t, "gemini-2.0-pro", cfg.GenAI.DeepModel)
	assert.Equal(t, 1.0, cfg.GenAI.RPS)
	assert.Equal(t, 8192, cfg.GenAI.MaxTokens)
	assert.Equal(t, 0.7, cfg.GenAI.Temperature)

	assert.Equal(t, 60, cfg.Gateway.HourlyBudgetFast)
	assert.Equal(t, 20, cfg.Gateway.HourlyBudgetDeep)
	assert.Equal(t, 2, cfg.Gateway.RepairAttempts)
	assert.Equal(t, 1, cfg.Gateway.TransportRetries)

	assert.Equal(t, 0.85, cfg.Ingest.SimilarityThreshold)
	assert.Equal(t, 0.95, cfg.Ingest.SubstringBoost)
	assert.Equal(t, 4, cfg.Ingest.MinSubstringLen)

	assert.Equal(t, []float64{0.5, 2.0, 10.0}, cfg.Geo.EscalationRadiiKm)
	assert.Equal(t, 5, cfg.Geo.FallbackCount)

	assert.Equal(t, 500, cfg.Orch.ChunkPacingMs)
	assert.Equal(t, 7, cfg.Orch.DefaultDays)

	assert.Equal(t, 500, cfg.Scout.LocationPacingMs)
	assert.Equal(t, 8, cfg.Scout.MinAddressLen)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PLACESCOUT_STORE_DRIVER", "postgres")
	t.Setenv("PLACESCOUT_GATEWAY_REPAIR_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Gateway.RepairAttempts)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
