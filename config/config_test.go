package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 16, cfg.UpdateBuffer)
	assert.True(t, cfg.EnsureSchema)
	assert.Equal(t, "migrations", cfg.MigrationsPath)
	assert.False(t, cfg.AttachmentsEnabled())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/cardboards")
	t.Setenv("UPDATE_BUFFER", "4")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/cardboards", cfg.DatabaseURL)
	assert.Equal(t, 4, cfg.UpdateBuffer)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := "RATE_LIMIT: 7\nLOG_LEVEL: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Environment:             "production",
		Port:                    0,
		RateLimit:               0,
		UpdateBuffer:            1,
		AttachmentStorageBucket: "attachments",
	}

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 5)
}
