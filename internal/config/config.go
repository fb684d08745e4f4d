// Package config loads rig's configuration from a YAML file and RIG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rajiknows/rig/pkg/logger"
)

// EnvPrefix is the prefix for environment overrides, e.g. RIG_PROVIDER_API_KEY.
const EnvPrefix = "RIG"

// Config is the root configuration.
type Config struct {
	Provider ProviderConfig   `mapstructure:"provider" yaml:"provider"`
	Agent    AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Tools    ToolsConfig      `mapstructure:"tools" yaml:"tools"`
	Storage  StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Server   ServerConfig     `mapstructure:"server" yaml:"server"`
	Log      logger.LogConfig `mapstructure:"log" yaml:"log"`
}

// ProviderConfig selects and configures the completion backend.
type ProviderConfig struct {
	Name        string  `mapstructure:"name" yaml:"name"` // openai, anthropic, groq, ollama
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries" yaml:"max_retries"`
}

// AgentConfig configures the agent and its turn budget.
type AgentConfig struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Preamble    string   `mapstructure:"preamble" yaml:"preamble,omitempty"`
	Documents   []string `mapstructure:"documents" yaml:"documents,omitempty"` // files attached to every request
	MaxDepth    int      `mapstructure:"max_depth" yaml:"max_depth"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	LoopWindow  int      `mapstructure:"loop_window" yaml:"loop_window"`
}

// ToolsConfig configures the builtin tools and their output limits.
type ToolsConfig struct {
	Enabled      []string       `mapstructure:"enabled" yaml:"enabled"`
	WorkingDir   string         `mapstructure:"working_dir" yaml:"working_dir"`
	OutputLimits map[string]int `mapstructure:"output_limits" yaml:"output_limits,omitempty"`
	LineLimits   map[string]int `mapstructure:"line_limits" yaml:"line_limits,omitempty"`
}

// StorageConfig locates the conversation database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig configures `rig serve`.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfigDir returns ~/.rig.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".rig"), nil
}

// DefaultConfigPath returns ~/.rig/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// Load reads configuration from path (if non-empty) over the defaults, then
// applies RIG_* environment overrides. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", expanded, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the rest of rig cannot use.
func (c *Config) Validate() error {
	if c.Provider.Name == "" {
		return errors.New("provider.name is required")
	}
	if c.Agent.MaxDepth < 0 {
		return fmt.Errorf("agent.max_depth must be >= 0, got %d", c.Agent.MaxDepth)
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must be >= 0, got %d", c.Provider.MaxRetries)
	}
	return nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(cfg *Config, path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(expanded, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
