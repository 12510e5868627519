package config

import (
	"time"

	"github.com/kringlelabs/kringle/internal/providers"
)

// Config holds kringle configuration.
// Loaded from config.yaml in the working directory or ~/.kringle.
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	Storage      StorageCfg                `mapstructure:"storage" yaml:"storage"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Chat         ChatCfg                   `mapstructure:"chat" yaml:"chat"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// StorageCfg configures the embedded database.
type StorageCfg struct {
	// Path is the database directory. Empty means {home}/data.
	Path       string `mapstructure:"path" yaml:"path"`
	SyncWrites bool   `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// LLMProviderCfg configures a completion provider.
type LLMProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`       // "openai", "mock"
	Model          string  `mapstructure:"model" yaml:"model"`     // Model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
}

// ChatCfg tunes the conversation orchestrator.
type ChatCfg struct {
	// AgentName is the display name recorded for agent replies.
	AgentName string `mapstructure:"agent_name" yaml:"agent_name"`
	// StreamTimeoutSeconds bounds one streaming completion call.
	StreamTimeoutSeconds int `mapstructure:"stream_timeout_seconds" yaml:"stream_timeout_seconds"`
	// HistoryTTLHours is the idle lifetime of conversation history.
	HistoryTTLHours int `mapstructure:"history_ttl_hours" yaml:"history_ttl_hours"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageCfg{
			SyncWrites: true,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:        "openai",
				Model:       "gpt-4o-mini",
				APIKey:      "${OPENAI_API_KEY}",
				Temperature: 0.6,
				MaxTokens:   512,
				Enabled:     true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openai",
		},
		Chat: ChatCfg{
			AgentName:            "Santa",
			StreamTimeoutSeconds: 60,
			HistoryTTLHours:      4,
		},
	}
}

// GetLLMProvider returns a provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// StreamTimeout returns the configured stream timeout as a duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Chat.StreamTimeoutSeconds) * time.Second
}

// HistoryTTL returns the configured history lifetime as a duration.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.Chat.HistoryTTLHours) * time.Hour
}

// ToRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Clients: make(map[string]providers.ClientConfig),
		Default: c.Defaults.LLMProvider,
	}
	for name, llm := range c.LLMProviders {
		cfg.Clients[name] = providers.ClientConfig{
			Type:        llm.Type,
			Model:       llm.Model,
			APIKey:      ResolveEnvVars(llm.APIKey),
			Temperature: llm.Temperature,
			MaxTokens:   llm.MaxTokens,
			Timeout:     time.Duration(llm.TimeoutSeconds) * time.Second,
			Enabled:     llm.Enabled,
		}
	}
	return cfg
}
