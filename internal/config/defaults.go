package config

import (
	"github.com/spf13/viper"

	"github.com/rajiknows/rig/tool/builtin"
)

// SetDefaults registers the default value of every key. Keys need a default
// for RIG_* environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	// Provider
	v.SetDefault("provider.name", "openai")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.max_tokens", 4096)
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.max_retries", 2)

	// Agent
	v.SetDefault("agent.name", "rig")
	v.SetDefault("agent.preamble", "")
	v.SetDefault("agent.documents", []string{})
	v.SetDefault("agent.max_depth", 3)
	v.SetDefault("agent.max_tokens", 0)
	v.SetDefault("agent.loop_window", 6)

	// Tools
	v.SetDefault("tools.enabled", builtin.Names)
	v.SetDefault("tools.working_dir", ".")

	// Storage
	v.SetDefault("storage.path", "~/.rig/rig.db")

	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}
