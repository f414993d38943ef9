package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "secret")
	for _, k := range []string{"JOBS_MAX_CONCURRENT", "API_PORT", "WORKSPACE_ROOT", "REGISTRY_DATABASE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, defaultMaxConcurrent, cfg.JobsMaxConcurrent)
	assert.Equal(t, defaultAPIPort, cfg.APIPort)
	assert.Equal(t, "./jobforge-data/registry.db", cfg.RegistryDatabaseURL)
}

func TestFromEnvRequiresSigningKey(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsBadConcurrency(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "secret")
	t.Setenv("JOBS_MAX_CONCURRENT", "0")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"FOO", "BAR"}, splitCSV("FOO, BAR"))
	assert.Nil(t, splitCSV(""))
}
