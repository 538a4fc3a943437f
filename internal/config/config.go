// Package config loads snipsync settings from snipsync.yaml, .env files and
// SNIPSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "SNIPSYNC"

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Listing ListingConfig `mapstructure:"listing"`
	Server  ServerConfig  `mapstructure:"server"`
	Misc    MiscConfig    `mapstructure:"misc"`
}

// BackendConfig points the client at the snippet service.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type ListingConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
}

// ServerConfig configures the development backend started by "snipsync serve".
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutDownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	SeedFile           string        `mapstructure:"seed_file"`
	RequireAuth        bool          `mapstructure:"require_auth"`
}

type MiscConfig struct {
	LogLevel string `mapstructure:"log_level"`
	GinMode  string `mapstructure:"gin_mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.request_timeout", 10*time.Second)
	v.SetDefault("backend.user_agent", "snipsync")
	v.SetDefault("auth.token", "")
	v.SetDefault("listing.page_size", 10)
	v.SetDefault("listing.search_debounce", 800*time.Millisecond)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")
	v.SetDefault("server.seed_file", "")
	v.SetDefault("server.require_auth", false)
	v.SetDefault("misc.log_level", "warn")
	v.SetDefault("misc.gin_mode", "release")
}

// Loader reads the configuration and can watch the config file for changes.
type Loader struct {
	v    *viper.Viper
	dir  string
	once sync.Once
}

// NewLoader searches snipsync.yaml in dir (when set), ~/.config/snipsync and
// the working directory, in that order.
func NewLoader(dir string) *Loader {
	v := viper.New()
	v.SetConfigName("snipsync")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "snipsync"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, dir: dir}
}

// LoadConfig is NewLoader(dir).Load().
func LoadConfig(dir string) (*Config, error) {
	return NewLoader(dir).Load()
}

// Load reads .env files, the config file and the environment. Variables
// already set in the environment win over .env entries.
func (l *Loader) Load() (*Config, error) {
	l.once.Do(func() {
		loadDotEnv(l.dir)
	})

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		logger.WithComponent("config").Debug("no config file found, using defaults and env vars")
	}
	return l.decode()
}

// File returns the config file in use, or "".
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Invalid edits are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logger.WithComponent("config").Warnf("ignoring config change in %s: %v", e.Name, err)
			return
		}
		logger.WithComponent("config").Infof("config reloaded after %s on %s", e.Op, e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(dir string) {
	files := []string{".env"}
	if dir != "" {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WithComponent("config").Warnf("cannot load %s: %v", f, err)
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid backend.base_url %q", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be positive")
	}
	if c.Listing.PageSize < 1 {
		return fmt.Errorf("listing.page_size must be at least 1")
	}
	if c.Listing.SearchDebounce <= 0 {
		return fmt.Errorf("listing.search_debounce must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if _, err := logrus.ParseLevel(c.Misc.LogLevel); err != nil {
		return fmt.Errorf("invalid misc.log_level %q", c.Misc.LogLevel)
	}
	switch c.Misc.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid misc.gin_mode %q", c.Misc.GinMode)
	}
	return nil
}
