// Package config loads skilltune settings from the environment, an optional
// .env file, and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Service modes.
const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// Config holds all runtime configuration.
type Config struct {
	// Mode selects the remote-backed or local-only difficulty service.
	Mode string `env:"MODE" envDefault:"remote"`

	// APIBaseURL is the root of the remote learning API.
	APIBaseURL string `env:"API_URL" envDefault:"http://localhost:3001/api"`

	// RemoteTimeout bounds every remote call before falling back.
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"3s"`

	// DBPath is the SQLite offline cache. Empty means the XDG default.
	DBPath string `env:"DB"`

	// RedisURL enables the shared Redis cache tier when set.
	RedisURL string `env:"REDIS_URL"`

	// Policy is the between-session difficulty policy: "step" or "weighted".
	Policy string `env:"POLICY" envDefault:"step"`

	// SyncOnStart pushes unsynced offline states when the service starts.
	SyncOnStart bool `env:"SYNC_ON_START" envDefault:"true"`

	Sync SyncConfig `envPrefix:"SYNC_"`

	Log LogConfig `envPrefix:"LOG_"`

	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// Coach selects the encouragement source: "static" or an LLM provider
	// name understood by the llm package.
	Coach string `env:"COACH" envDefault:"static"`
}

// SyncConfig tunes the retry behavior of offline sync pushes.
type SyncConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	InitialWait time.Duration `env:"INITIAL_WAIT" envDefault:"500ms"`
	MaxWait     time.Duration `env:"MAX_WAIT" envDefault:"5s"`
	Multiplier  float64       `env:"MULTIPLIER" envDefault:"2"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// HTTPConfig configures the sidecar HTTP API.
type HTTPConfig struct {
	Addr           string   `env:"ADDR" envDefault:":8787"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "SKILLTUNE_"

// Load reads an optional .env file from the working directory and then
// parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the process environment only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeRemote:
		if c.APIBaseURL == "" {
			return fmt.Errorf("%sAPI_URL is required in remote mode", EnvPrefix)
		}
	case ModeLocal:
	default:
		return fmt.Errorf("unknown mode: %q", c.Mode)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote timeout must be positive, got %s", c.RemoteTimeout)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync max attempts must be at least 1, got %d", c.Sync.MaxAttempts)
	}
	return nil
}

// ResolveDBPath returns the database path in priority order:
// 1. Config.DBPath (SKILLTUNE_DB or --db)
// 2. $XDG_DATA_HOME/skilltune/skilltune.db
// 3. ~/.local/share/skilltune/skilltune.db
// The parent directory is created if needed.
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, EnsureDir(c.DBPath)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "skilltune", "skilltune.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
