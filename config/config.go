package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/unclepete-20/chatbot-test/domain"
)

// Config holds the application configuration
type Config struct {
	Debug   bool          `mapstructure:"debug"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	History HistoryConfig `mapstructure:"history"`
	Reply   ReplyConfig   `mapstructure:"reply"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LLMConfig holds the completion provider configuration
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
}

// HistoryConfig controls conversation scoping and bounds
type HistoryConfig struct {
	Mode             domain.HistoryMode `mapstructure:"mode"`
	MaxMessages      int                `mapstructure:"max_messages"`
	SystemPromptFile string             `mapstructure:"system_prompt_file"`
}

// ReplyConfig controls outbound framing
type ReplyConfig struct {
	Format string `mapstructure:"format"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"

	FormatEnvelope = "envelope"
	FormatText     = "text"
)

var defaults = map[string]any{
	"debug":                      false,
	"server.addr":                ":8080",
	"llm.provider":               ProviderOpenAI,
	"llm.model":                  "gpt-3.5-turbo",
	"llm.api_key":                "",
	"llm.base_url":               "",
	"llm.completion_timeout":     "0s",
	"history.mode":               string(domain.SessionHistory),
	"history.max_messages":       domain.DefaultMaxMessages,
	"history.system_prompt_file": "",
	"reply.format":               FormatEnvelope,
}

// Load reads .env (when present), an optional config.yaml and the
// environment, in increasing order of precedence. CONFIG_PATH points to an
// explicit config file.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises enum values and rejects unusable settings.
func (c *Config) Validate() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if c.LLM.CompletionTimeout < 0 {
		return fmt.Errorf("llm.completion_timeout must not be negative")
	}

	c.History.Mode = domain.HistoryMode(strings.ToLower(string(c.History.Mode)))
	switch c.History.Mode {
	case domain.SessionHistory, domain.SharedHistory:
	default:
		return fmt.Errorf("unsupported history.mode %q", c.History.Mode)
	}
	if c.History.MaxMessages < 2 {
		return fmt.Errorf("history.max_messages must be at least 2, got %d", c.History.MaxMessages)
	}

	c.Reply.Format = strings.ToLower(c.Reply.Format)
	switch c.Reply.Format {
	case FormatEnvelope, FormatText:
	default:
		return fmt.Errorf("unsupported reply.format %q", c.Reply.Format)
	}
	return nil
}
