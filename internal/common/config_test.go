package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "data/coinwatch", config.Storage.Path)
	assert.Equal(t, "https://api.coingecko.com/api/v3", config.CoinGecko.BaseURL)
	assert.Equal(t, 10, config.CoinGecko.RateLimit)
	assert.Equal(t, 30*time.Second, config.CoinGecko.GetTimeout())
	assert.Equal(t, 30*time.Second, config.Poll.GetInterval())
	assert.Equal(t, "info", config.Logging.Level)
	assert.False(t, config.IsProduction())
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coinwatch.toml")
	content := `
environment = "production"

[server]
host = "127.0.0.1"
port = 9090

[coingecko]
rate_limit = 5
timeout = "10s"

[poll]
interval = "15s"

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.True(t, config.IsProduction())
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 5, config.CoinGecko.RateLimit)
	assert.Equal(t, 10*time.Second, config.CoinGecko.GetTimeout())
	assert.Equal(t, 15*time.Second, config.Poll.GetInterval())
	assert.Equal(t, "debug", config.Logging.Level)

	// File values did not disturb defaults it left unset.
	assert.Equal(t, "https://api.coingecko.com/api/v3", config.CoinGecko.BaseURL)
}

func TestLoadConfig_MissingFileIsSkipped(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "development", config.Environment)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("COINWATCH_ENV", "production")
	t.Setenv("COINWATCH_HOST", "10.0.0.5")
	t.Setenv("COINWATCH_PORT", "3000")
	t.Setenv("COINWATCH_LOG_LEVEL", "warn")
	t.Setenv("COINWATCH_DATA_PATH", "/var/lib")
	t.Setenv("COINWATCH_COINGECKO_BASE_URL", "http://localhost:9999")
	t.Setenv("COINWATCH_POLL_INTERVAL", "5s")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "10.0.0.5", config.Server.Host)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, filepath.Join("/var/lib", "coinwatch"), config.Storage.Path)
	assert.Equal(t, "http://localhost:9999", config.CoinGecko.BaseURL)
	assert.Equal(t, 5*time.Second, config.Poll.GetInterval())
}

func TestLoadConfig_InvalidPortEnvIgnored(t *testing.T) {
	t.Setenv("COINWATCH_PORT", "not-a-port")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestPollConfig_GetIntervalFallback(t *testing.T) {
	assert.Equal(t, 30*time.Second, (&PollConfig{Interval: "garbage"}).GetInterval())
	assert.Equal(t, 30*time.Second, (&PollConfig{Interval: "-5s"}).GetInterval())
	assert.Equal(t, time.Minute, (&PollConfig{Interval: "1m"}).GetInterval())
}

func TestCoinGeckoConfig_GetTimeoutFallback(t *testing.T) {
	assert.Equal(t, 30*time.Second, (&CoinGeckoConfig{Timeout: ""}).GetTimeout())
	assert.Equal(t, 5*time.Second, (&CoinGeckoConfig{Timeout: "5s"}).GetTimeout())
}
