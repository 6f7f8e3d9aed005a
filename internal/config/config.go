// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest priority first:
//  1. Environment variables (prefix STOCKCHAT_, e.g. STOCKCHAT_MODEL_NAME)
//  2. Config file (~/.stockchat/config.yaml)
//  3. Built-in defaults
//
// Sensitive values (the OpenAI API key) are never written to the config file
// by this package and are masked when a Config is logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors returned by Validate. Check with errors.Is.
var (
	// ErrMissingAPIKey indicates no OpenAI API key was configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidInterval indicates the simulator interval is not positive.
	ErrInvalidInterval = errors.New("invalid simulate interval")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")
)

const (
	// DefaultModelName is the chat model used when none is configured.
	DefaultModelName = "gpt-4o-mini"

	// DefaultSimulateInterval is the background purchase cadence for
	// `stockchat simulate`.
	DefaultSimulateInterval = 2 * time.Second

	// DefaultMaxHistoryTurns bounds how many chat turns are replayed to the
	// model per request.
	DefaultMaxHistoryTurns = 50

	// MaxAllowedHistoryTurns is the absolute cap to keep prompts bounded.
	MaxAllowedHistoryTurns = 1000

	configDirName  = ".stockchat"
	configFileName = "config"
	envPrefix      = "STOCKCHAT"
)

// Config stores application configuration.
type Config struct {
	// OpenAIAPIKey authenticates model calls. SENSITIVE: masked in LogValue.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	// ModelName is the chat completion model (e.g. "gpt-4o-mini").
	ModelName string `mapstructure:"model_name"`

	// DBPath is the sqlite inventory database location.
	DBPath string `mapstructure:"db_path"`

	// SimulateInterval is the tick period of the background purchase
	// simulator.
	SimulateInterval time.Duration `mapstructure:"simulate_interval"`

	// MaxHistoryTurns caps the conversation history sent to the model.
	MaxHistoryTurns int `mapstructure:"max_history_turns"`

	// Logging configuration.
	LogLevel string `mapstructure:"log_level"` // debug | info | warn | error
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, the config file (if present), and
// the environment.
func Load() (*Config, error) {
	v := viper.New()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registering the key is what lets AutomaticEnv feed it into Unmarshal.
	v.SetDefault("openai_api_key", "")
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("db_path", filepath.Join(dir, "inventory.db"))
	v.SetDefault("simulate_interval", DefaultSimulateInterval)
	v.SetDefault("max_history_turns", DefaultMaxHistoryTurns)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Missing file is fine; defaults and env still apply.
	}

	// The conventional OPENAI_API_KEY variable works as a fallback so users
	// do not have to duplicate the key under the STOCKCHAT_ prefix.
	if v.GetString("openai_api_key") == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			v.Set("openai_api_key", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Dir returns the stockchat state directory (~/.stockchat), creating it if
// needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Validate checks the configuration for the chat path. The simulator-only
// path calls ValidateSimulate instead (no API key required there).
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set STOCKCHAT_OPENAI_API_KEY or OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if c.MaxHistoryTurns <= 0 || c.MaxHistoryTurns > MaxAllowedHistoryTurns {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidHistoryLimit, c.MaxHistoryTurns, MaxAllowedHistoryTurns)
	}
	return c.ValidateSimulate()
}

// ValidateSimulate checks only the fields the simulator needs.
func (c *Config) ValidateSimulate() error {
	if c.SimulateInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.SimulateInterval)
	}
	return nil
}

// Level parses LogLevel, defaulting to info on unknown values.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogValue masks the API key when a Config is logged with slog.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model_name", c.ModelName),
		slog.String("db_path", c.DBPath),
		slog.Duration("simulate_interval", c.SimulateInterval),
		slog.Int("max_history_turns", c.MaxHistoryTurns),
		slog.Bool("api_key_set", c.OpenAIAPIKey != ""),
	)
}
