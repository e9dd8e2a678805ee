package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-digital/sekolah-api/internal/app"
)

func TestLoadConfigRejectsEmptyJWTSecret(t *testing.T) {
	// envconfig's required tag only rejects an unset variable; a variable
	// exported with an empty value passes Process and is caught by the
	// explicit check.
	t.Setenv("JWT_SECRET", "")
	cfg, err := app.LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-secret")
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 100, cfg.RateLimitGeneral)
	assert.Equal(t, 5, cfg.RateLimitLogin)
	assert.False(t, cfg.IsProduction())
}
