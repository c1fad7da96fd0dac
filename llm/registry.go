package llm

import (
	"fmt"
	"os"
	"sync"
)

// Provider identifies a supported model provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

// ClientKey uniquely identifies an adapter configuration.
type ClientKey struct {
	Provider     Provider
	Model        string
	APIKey       string // credential-based providers
	Host         string // ollama
	BaseURL      string // openai-compatible endpoints
	Organization string // openai
}

// ProviderConfig holds the per-provider settings the registry resolves
// against. Empty fields fall back to conventional environment variables.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
}

// Preference represents a single provider/model preference in priority order.
type Preference struct {
	Provider    Provider
	Model       string
	Temperature *float64
}

// Registry resolves provider preferences into concrete client keys.
// Adapter construction and caching is handled by the caller.
type Registry struct {
	enabled map[Provider]bool
	mu      sync.RWMutex
	config  *ProviderConfig
}

// NewRegistry creates a registry with the given config and enabled providers.
func NewRegistry(cfg *ProviderConfig, enabled []Provider) *Registry {
	enabledMap := make(map[Provider]bool)
	for _, p := range enabled {
		enabledMap[p] = true
	}
	return &Registry{enabled: enabledMap, config: cfg}
}

// IsEnabled reports whether the provider is in the enabled set.
func (r *Registry) IsEnabled(provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[provider]
}

// IsConfigured reports whether the provider has the settings it needs.
func (r *Registry) IsConfigured(provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConfiguredUnlocked(provider)
}

// Resolve returns a ClientKey for the first enabled, configured provider
// in the preference list.
func (r *Registry) Resolve(prefs []Preference) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var attempted []Provider
	for _, pref := range prefs {
		attempted = append(attempted, pref.Provider)
		if !r.enabled[pref.Provider] {
			continue
		}
		if !r.isConfiguredUnlocked(pref.Provider) {
			continue
		}
		key, err := r.resolveKey(pref.Provider, pref.Model)
		if err != nil {
			continue
		}
		return key, nil
	}
	return nil, fmt.Errorf("no available provider from preferences %v", attempted)
}

func (r *Registry) isConfiguredUnlocked(provider Provider) bool {
	switch provider {
	case ProviderAnthropic:
		return r.config.AnthropicAPIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
	case ProviderGemini:
		return r.config.GeminiAPIKey != "" || os.Getenv("GEMINI_API_KEY") != ""
	case ProviderOllama:
		// Host has a default, no key needed.
		return true
	case ProviderOpenAI:
		return r.config.OpenAIAPIKey != "" || os.Getenv("OPENAI_API_KEY") != ""
	default:
		return false
	}
}

func (r *Registry) resolveKey(provider Provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{Provider: provider, Model: modelOverride}

	switch provider {
	case ProviderAnthropic:
		key.APIKey = firstNonEmpty(r.config.AnthropicAPIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.AnthropicModel, "claude-sonnet-4-5")
		}

	case ProviderGemini:
		key.APIKey = firstNonEmpty(r.config.GeminiAPIKey, os.Getenv("GEMINI_API_KEY"))
		if key.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.GeminiModel, "gemini-2.0-flash")
		}

	case ProviderOllama:
		key.Host = firstNonEmpty(r.config.OllamaHost, os.Getenv("OLLAMA_HOST"), "http://localhost:11434")
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OllamaModel, os.Getenv("OLLAMA_MODEL"))
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		key.APIKey = firstNonEmpty(r.config.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY"))
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.BaseURL = firstNonEmpty(r.config.OpenAIBaseURL, os.Getenv("OPENAI_BASE_URL"))
		key.Organization = firstNonEmpty(r.config.OpenAIOrg, os.Getenv("OPENAI_ORG_ID"))
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OpenAIModel, os.Getenv("OPENAI_MODEL"))
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
