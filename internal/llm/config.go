package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures one provider. It is read from
// SKILLTUNE_LLM_* variables.
type Config struct {
	Provider string        `env:"PROVIDER" envDefault:"anthropic"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`

	Anthropic  KeyModel `envPrefix:"ANTHROPIC_"`
	OpenAI     KeyModel `envPrefix:"OPENAI_"`
	Gemini     KeyModel `envPrefix:"GEMINI_"`
	OpenRouter KeyModel `envPrefix:"OPENROUTER_"`

	Retry RetryConfig `envPrefix:"RETRY_"`
}

// KeyModel is the per-provider credential and model choice. BaseURL is
// honored by the OpenAI-compatible providers.
type KeyModel struct {
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL"`
	BaseURL string `env:"BASE_URL"`
}

// RetryConfig configures retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"2"`
	InitialWait time.Duration `env:"INITIAL_WAIT" envDefault:"500ms"`
	MaxWait     time.Duration `env:"MAX_WAIT" envDefault:"4s"`
	Multiplier  float64       `env:"MULTIPLIER" envDefault:"2"`
}

// envPrefix is the prefix of every LLM variable.
const envPrefix = "SKILLTUNE_LLM_"

// DefaultModels are used when no model is configured.
var DefaultModels = map[string]string{
	ProviderAnthropic:  "claude-haiku",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderGemini:     "gemini-flash",
	ProviderOpenRouter: "google/gemini-2.0-flash-exp",
}

// ConfigFromEnv reads SKILLTUNE_LLM_* variables. When provider is not
// empty it overrides SKILLTUNE_LLM_PROVIDER.
func ConfigFromEnv(provider string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse llm config: %w", err)
	}
	if provider != "" {
		cfg.Provider = provider
	}
	cfg.discoverKeys()
	return cfg, nil
}

// discoverKeys fills missing API keys from the vendors' standard variables.
func (c *Config) discoverKeys() {
	for _, k := range []struct {
		dst *string
		env string
	}{
		{&c.Anthropic.APIKey, "ANTHROPIC_API_KEY"},
		{&c.OpenAI.APIKey, "OPENAI_API_KEY"},
		{&c.Gemini.APIKey, "GEMINI_API_KEY"},
		{&c.OpenRouter.APIKey, "OPENROUTER_API_KEY"},
	} {
		if *k.dst == "" {
			*k.dst = os.Getenv(k.env)
		}
	}
}

// Selected returns the settings of the chosen provider with the default
// model filled in.
func (c Config) Selected() KeyModel {
	var km KeyModel
	switch c.Provider {
	case ProviderAnthropic:
		km = c.Anthropic
	case ProviderOpenAI:
		km = c.OpenAI
	case ProviderGemini:
		km = c.Gemini
	case ProviderOpenRouter:
		km = c.OpenRouter
	}
	if km.Model == "" {
		km.Model = DefaultModels[c.Provider]
	}
	return km
}

// Validate checks that the chosen provider is known and has a key.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderMock:
		return nil
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOpenRouter:
		if c.Selected().APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider", c.Provider)
		}
		return nil
	}
	return fmt.Errorf("unknown LLM provider: %q", c.Provider)
}
