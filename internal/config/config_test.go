package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, "redis://localhost", cfg.RedisURL)
	assert.Equal(t, "http://shepherd:9020", cfg.ShepherdURL)
	assert.Equal(t, "browsers", cfg.FlockName)
	assert.Equal(t, 2, cfg.NumBrowsers)
	assert.Equal(t, 100, cfg.SameDomainDepth)
	assert.Equal(t, 30*time.Second, cfg.WatchInterval)
	assert.Equal(t, 3, cfg.TaskMaxRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_SHEPHERD", "http://orchestrator:9999")
	t.Setenv("DEFAULT_NUM_BROWSERS", "5")
	t.Setenv("DEFAULT_SAME_DOMAIN_DEPTH", "50")
	t.Setenv("WATCH_INTERVAL_SECONDS", "10")

	cfg := Load()

	assert.Equal(t, "http://orchestrator:9999", cfg.ShepherdURL)
	assert.Equal(t, 5, cfg.NumBrowsers)
	assert.Equal(t, 50, cfg.SameDomainDepth)
	assert.Equal(t, 10*time.Second, cfg.WatchInterval)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_NUM_BROWSERS", "several")

	cfg := Load()
	assert.Equal(t, 2, cfg.NumBrowsers)
}

func TestYAMLOverlayOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_NUM_BROWSERS", "5")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"shepherd_url: http://from-file:9020\nnum_browsers: 8\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()

	assert.Equal(t, "http://from-file:9020", cfg.ShepherdURL)
	assert.Equal(t, 8, cfg.NumBrowsers, "file overrides environment")
	assert.Equal(t, "browsers", cfg.FlockName, "untouched fields keep env defaults")
}

func TestYAMLOverlayBadFilePanics(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Panics(t, func() { Load() })
}

func TestContainerEnviron(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	env := cfg.ContainerEnviron()

	assert.Equal(t, "about:blank", env["URL"])
	assert.Equal(t, "redis://localhost", env["REDIS_URL"])
	assert.Equal(t, "CrawlerTab", env["TAB_TYPE"])
	assert.Equal(t, "http://behaviors:3030", env["BEHAVIOR_API_URL"])

	// each caller gets its own copy to extend
	env["AUTO_ID"] = "abcdef123456"
	assert.NotContains(t, cfg.ContainerEnviron(), "AUTO_ID")
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_URL",
		"DEFAULT_SHEPHERD", "DEFAULT_FLOCK", "DEFAULT_POOL", "DEFAULT_BROWSER",
		"DEFAULT_NUM_BROWSERS", "DEFAULT_SAME_DOMAIN_DEPTH",
		"BEHAVIOR_API_URL", "SCREENSHOT_API_URL",
		"WATCH_INTERVAL_SECONDS", "TASK_MAX_RETRIES", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}
