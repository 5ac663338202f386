package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
)

func fakeEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadMissingDatabaseURLIsFatal(t *testing.T) {
	_, _, err := Load(WithEnvLookup(fakeEnv(nil)))
	require.Error(t, err)
	assert.Equal(t, pipelineerrors.KindFatalConfig, pipelineerrors.KindOf(err))
}

func TestLoadAppliesDefaultsThenEnv(t *testing.T) {
	cfg, meta, err := Load(WithEnvLookup(fakeEnv(map[string]string{
		"DATABASE_URL": "postgres://localhost/sync",
		"WINDOW_DAYS":  "30",
	})))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/sync", cfg.DatabaseURL)
	assert.Equal(t, "Asia/Kolkata", cfg.PipelineTimezone) // default, untouched
	assert.Equal(t, 30, cfg.WindowDays)

	assert.Equal(t, SourceEnv, meta.SourceOf("DatabaseURL"))
	assert.Equal(t, SourceEnv, meta.SourceOf("WindowDays"))
	assert.Equal(t, SourceDefault, meta.SourceOf("PipelineTimezone"))
}

func TestOverrideWinsOverEnv(t *testing.T) {
	cfg, meta, err := Load(
		WithEnvLookup(fakeEnv(map[string]string{
			"DATABASE_URL": "postgres://localhost/sync",
			"MAX_WORKERS":  "2",
		})),
		WithOverride(func(c *RuntimeConfig) { c.MaxWorkers = 7 }),
	)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxWorkers)
	assert.Equal(t, SourceOverride, meta.SourceOf("MaxWorkers"))
}

func TestForceFlagFromEnv(t *testing.T) {
	cfg, _, err := Load(WithEnvLookup(fakeEnv(map[string]string{
		"DATABASE_URL": "postgres://localhost/sync",
		"FORCE":        "true",
	})))
	require.NoError(t, err)
	assert.True(t, cfg.Force)
}

func TestSyncGroupNormalizedToUpper(t *testing.T) {
	cfg, _, err := Load(WithEnvLookup(fakeEnv(map[string]string{
		"DATABASE_URL": "postgres://localhost/sync",
		"SYNC_GROUP":   "td",
	})))
	require.NoError(t, err)
	assert.Equal(t, "TD", cfg.SyncGroup)
}
