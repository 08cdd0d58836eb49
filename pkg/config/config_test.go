package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 20, cfg.Internship.DefaultLecturerCapacity)
	assert.Equal(t, "15 0 * * *", cfg.Sweeper.Schedule)
	assert.Equal(t, 7*24*time.Hour, cfg.Uploads.SignedURLTTL)
	assert.Len(t, cfg.Uploads.AllowedMIMEs, 3)
	assert.Nil(t, cfg.JWT.Audience)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DEFAULT_LECTURER_CAPACITY", "-1")
	t.Setenv("JWT_AUDIENCE", "internship-api, ,portal")
	t.Setenv("PERIOD_CACHE_TTL", "not-a-duration")
	t.Setenv("INTERNSHIP_TIMEZONE", "Asia/Jakarta")
	t.Setenv("ENABLE_SWEEPER", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Internship.DefaultLecturerCapacity)
	assert.Equal(t, []string{"internship-api", "portal"}, cfg.JWT.Audience)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PeriodTTL)
	assert.Equal(t, "Asia/Jakarta", cfg.Internship.Timezone)
	assert.True(t, cfg.Sweeper.Enabled)
}
