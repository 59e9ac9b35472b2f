package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "student-erp", cfg.Mongo.Database)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.Attendance.UniqueDayIndex)
	assert.Equal(t, 2, cfg.Notifications.Workers)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ATTENDANCE_UNIQUE_DAY_INDEX", "true")
	t.Setenv("ANALYTICS_CACHE_TTL", "2m")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Attendance.UniqueDayIndex)
	assert.Equal(t, 2*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
	assert.Equal(t, 3*time.Minute, parseDuration("3m", time.Second))
}

func TestAttendanceLocation(t *testing.T) {
	assert.Equal(t, time.Local, AttendanceConfig{}.Location())
	assert.Equal(t, time.Local, AttendanceConfig{Timezone: "Nowhere/Invalid"}.Location())
	assert.Equal(t, "UTC", AttendanceConfig{Timezone: "UTC"}.Location().String())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
