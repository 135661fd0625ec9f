package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.App.HTTPPort)
	assert.Equal(t, 100, cfg.Analysis.MaxWalletsPerRequest)
	assert.Equal(t, 24*time.Hour, cfg.Analysis.ResultTTL)
	assert.Equal(t, 1000, cfg.Analysis.MaxResults)
	assert.Equal(t, 1.0, cfg.Analysis.LouvainResolution)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Neo4J.Enabled)
	assert.Equal(t, "wallet_analysis.requests", cfg.NATS.RequestSubject())
	assert.Equal(t, "wallet_analysis.completed", cfg.NATS.CompletedSubject())
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ANALYSIS_FETCH_CONCURRENCY", "9")
	t.Setenv("MORALIS_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Analysis.FetchConcurrency)
	assert.Equal(t, "test-key", cfg.Moralis.APIKey)
}

func TestValidate(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Analysis.MaxResults = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Analysis.FetchConcurrency = -1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Moralis.RequestsPerSecond = 0
	assert.Error(t, bad.Validate())
}
