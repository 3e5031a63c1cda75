package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XOVER_DATABASE_URL", "postgres://localhost:5432/xover")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 200_000.0, cfg.CrossoverRangeMeters)
	assert.Equal(t, 1000.0, cfg.CrossoverMinDepth)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("XOVER_DATABASE_URL", "postgres://db:5432/profiles")
	t.Setenv("XOVER_HTTP_ADDR", ":9090")
	t.Setenv("XOVER_LOG_FORMAT", "text")
	t.Setenv("XOVER_QUERY_TIMEOUT", "90s")
	t.Setenv("XOVER_CROSSOVER_RANGE_METERS", "50000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/profiles", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 90*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 50_000.0, cfg.CrossoverRangeMeters)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "missing database url",
			env:    map[string]string{},
			errMsg: "XOVER_DATABASE_URL is required",
		},
		{
			name: "zero query timeout",
			env: map[string]string{
				"XOVER_DATABASE_URL":  "postgres://localhost/xover",
				"XOVER_QUERY_TIMEOUT": "0s",
			},
			errMsg: "XOVER_QUERY_TIMEOUT must be positive",
		},
		{
			name: "negative crossover range",
			env: map[string]string{
				"XOVER_DATABASE_URL":           "postgres://localhost/xover",
				"XOVER_CROSSOVER_RANGE_METERS": "-1",
			},
			errMsg: "XOVER_CROSSOVER_RANGE_METERS must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
