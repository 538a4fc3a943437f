package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Backend: BackendConfig{BaseURL: "http://localhost:8080", RequestTimeout: 10 * time.Second},
		Listing: ListingConfig{PageSize: 10, SearchDebounce: 800 * time.Millisecond},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutDownTimeout: 5 * time.Second,
			RequestTimeout:  time.Second,
		},
		Misc: MiscConfig{LogLevel: "info", GinMode: "release"},
	}
}

// isolate points HOME and the working directory at empty temp dirs so no
// developer config leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestConfig_Validate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().validate())
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Backend.BaseURL = "localhost:8080" }},
		{"ftp base url", func(c *Config) { c.Backend.BaseURL = "ftp://example.com" }},
		{"zero request timeout", func(c *Config) { c.Backend.RequestTimeout = 0 }},
		{"zero page size", func(c *Config) { c.Listing.PageSize = 0 }},
		{"zero debounce", func(c *Config) { c.Listing.SearchDebounce = 0 }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"too high port", func(c *Config) { c.Server.Port = 65536 }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutDownTimeout = 0 }},
		{"zero server request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Misc.LogLevel = "loud" }},
		{"bad gin mode", func(c *Config) { c.Misc.GinMode = "prod" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 10, cfg.Listing.PageSize)
	assert.Equal(t, 800*time.Millisecond, cfg.Listing.SearchDebounce)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Misc.LogLevel)
	assert.False(t, cfg.Server.RequireAuth)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := isolate(t)
	yaml := "backend:\n  base_url: http://snippets.internal:9000\nlisting:\n  page_size: 25\n  search_debounce: 300ms\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snipsync.yaml"), []byte(yaml), 0o644))
	t.Setenv("SNIPSYNC_LISTING_PAGE_SIZE", "50")

	loader := NewLoader(dir)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://snippets.internal:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 50, cfg.Listing.PageSize, "env overrides file")
	assert.Equal(t, 300*time.Millisecond, cfg.Listing.SearchDebounce)
	assert.Equal(t, filepath.Join(dir, "snipsync.yaml"), loader.File())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SNIPSYNC_AUTH_TOKEN=from-dotenv\nSNIPSYNC_SERVER_PORT=9100\n"), 0o644))
	t.Setenv("SNIPSYNC_SERVER_PORT", "9200")
	// Registered so the variable godotenv sets is removed after the test.
	t.Setenv("SNIPSYNC_AUTH_TOKEN", "")
	require.NoError(t, os.Unsetenv("SNIPSYNC_AUTH_TOKEN"))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.Token)
	assert.Equal(t, 9200, cfg.Server.Port, "process env wins over .env")
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	dir := isolate(t)
	t.Setenv("SNIPSYNC_SERVER_PORT", "70000")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "server.port")
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snipsync.yaml"), []byte("backend: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "read config file")
}

func TestLoader_WatchWithoutFileIsNoop(t *testing.T) {
	dir := isolate(t)
	loader := NewLoader(dir)
	_, err := loader.Load()
	require.NoError(t, err)

	called := false
	loader.Watch(func(*Config) { called = true })
	assert.False(t, called)
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "snipsync.yaml")
	require.NoError(t, os.WriteFile(file, []byte("misc:\n  log_level: warn\n"), 0o644))

	loader := NewLoader(dir)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	loader.Watch(func(c *Config) { changed <- c })
	require.NoError(t, os.WriteFile(file, []byte("misc:\n  log_level: debug\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Misc.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}
