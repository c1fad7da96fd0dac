// Package config loads the YAML configuration file and merges it over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// ResilienceConfig configures timeouts and retry behavior for provider
// calls.
type ResilienceConfig struct {
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds,omitempty"`
	MaxRetries            int     `yaml:"max_retries,omitempty"`
	RetryDelayMillis      int     `yaml:"retry_delay_millis,omitempty"`
	BackoffFactor         float64 `yaml:"backoff_factor,omitempty"`
}

// RequestTimeout returns the configured timeout as a duration.
func (r ResilienceConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSeconds) * time.Second
}

// RetryDelay returns the configured base retry delay as a duration.
func (r ResilienceConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMillis) * time.Millisecond
}

// Config is the root configuration.
type Config struct {
	Providers []string `yaml:"providers,omitempty"`

	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Gemini    GeminiConfig    `yaml:"gemini,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`

	Resilience ResilienceConfig `yaml:"resilience,omitempty"`

	MaxToolRoundtrips int    `yaml:"max_tool_roundtrips,omitempty"`
	LogFile           string `yaml:"log_file,omitempty"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Providers: []string{"anthropic", "openai", "gemini", "ollama"},
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Resilience: ResilienceConfig{
			RequestTimeoutSeconds: 120,
			MaxRetries:            3,
			RetryDelayMillis:      250,
			BackoffFactor:         2,
		},
		MaxToolRoundtrips: 5,
	}
}

// Path returns the config file path, honoring the UNIFIEDAI_CONFIG_PATH
// environment variable.
func Path() string {
	if envPath := os.Getenv("UNIFIEDAI_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.unifiedai/config.yaml"
	}
	return filepath.Join(homeDir, ".unifiedai", "config.yaml")
}

// Load reads the config file at path and merges it over the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	expanded := expandPath(path)

	if err := os.MkdirAll(filepath.Dir(expanded), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expanded, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderConfig converts the file configuration into the registry's
// provider settings.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		AnthropicAPIKey: c.Anthropic.APIKey,
		AnthropicModel:  c.Anthropic.Model,
		GeminiAPIKey:    c.Gemini.APIKey,
		GeminiModel:     c.Gemini.Model,
		OllamaHost:      c.Ollama.Host,
		OllamaModel:     c.Ollama.Model,
		OpenAIAPIKey:    c.OpenAI.APIKey,
		OpenAIBaseURL:   c.OpenAI.BaseURL,
		OpenAIModel:     c.OpenAI.Model,
		OpenAIOrg:       c.OpenAI.Organization,
	}
}

// Policy converts the resilience settings into a retry policy.
func (c *Config) Policy() resilience.Policy {
	return resilience.Policy{
		RequestTimeout: c.Resilience.RequestTimeout(),
		MaxRetries:     c.Resilience.MaxRetries,
		RetryDelay:     c.Resilience.RetryDelay(),
		BackoffFactor:  c.Resilience.BackoffFactor,
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
