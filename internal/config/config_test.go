package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "queue-updates", cfg.Channel)
	assert.Equal(t, 100, cfg.HistoryRetention)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 10*time.Second, cfg.Timing().RequestTimeout)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "queueboard.yaml", `
addr: ":9000"
pg_url: postgres://board@localhost/board
history_retention: 250
rate_limit: 2.5
poll_interval: 2s
verbose: true
`)
	cfg := Defaults()
	require.NoError(t, LoadFile(path, &cfg))

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "postgres://board@localhost/board", cfg.PGURL)
	assert.Equal(t, 250, cfg.HistoryRetention)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Timing().PollInterval)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "queueboard.db", cfg.DB, "unset fields keep defaults")
}

func TestLoadFile_Rejected(t *testing.T) {
	for name, content := range map[string]string{
		"unknown field":     "listen: \":80\"\n",
		"bad postgres url":  "pg_url: mysql://x\n",
		"retention too low": "history_retention: 0\n",
		"wrong type":        "rate_burst: many\n",
		"bad duration":      "poll_interval: soon\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			err := LoadFile(writeFile(t, "c.yaml", content), &cfg)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, Defaults(), cfg, "rejected file leaves config untouched")
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestLoadEnv(t *testing.T) {
	cfg := Defaults()
	err := LoadEnv(&cfg, envMap(map[string]string{
		"QUEUEBOARD_REDIS_URL":       "redis://localhost:6379/0",
		"QUEUEBOARD_RATE_BURST":      "5",
		"QUEUEBOARD_REQUEST_TIMEOUT": "3s",
		"QUEUEBOARD_SERVER":          "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.Equal(t, 3*time.Second, cfg.Timing().RequestTimeout)
	assert.Empty(t, cfg.Server)
}

func TestLoadEnv_Invalid(t *testing.T) {
	cfg := Defaults()
	err := LoadEnv(&cfg, envMap(map[string]string{"QUEUEBOARD_RATE_BURST": "lots"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUEBOARD_RATE_BURST")

	err = LoadEnv(&cfg, envMap(map[string]string{"QUEUEBOARD_SERVER": "localhost:8080"}))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "addr: \":7000\"\nchannel: board-a\n")
	t.Setenv("QUEUEBOARD_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "board-a", cfg.Channel)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	t.Setenv("QUEUEBOARD_CONFIG", writeFile(t, "c.yaml", "db: /tmp/board.db\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/board.db", cfg.DB)
}

func TestLoadDotEnv(t *testing.T) {
	const probe = "QUEUEBOARD_DOTENV_PROBE"
	t.Cleanup(func() { os.Unsetenv(probe) })
	path := writeFile(t, ".env", probe+"=yes\n")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "yes", os.Getenv(probe))
}
