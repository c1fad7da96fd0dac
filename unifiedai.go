// Package unifiedai exposes one client API over multiple model
// providers. It resolves provider preferences into concrete adapters,
// caches them per configuration, and runs tool orchestration loops
// through the agent engine.
package unifiedai

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/agent"
	"github.com/jensroth-git/unifiedai/config"
	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/llm/anthropic"
	"github.com/jensroth-git/unifiedai/llm/gemini"
	"github.com/jensroth-git/unifiedai/llm/ollama"
	"github.com/jensroth-git/unifiedai/llm/openai"
	"github.com/jensroth-git/unifiedai/resilience"
)

// NewAdapter constructs a provider adapter for the given key.
func NewAdapter(ctx context.Context, key llm.ClientKey, policy resilience.Policy, logger zerolog.Logger) (llm.Adapter, error) {
	switch key.Provider {
	case llm.ProviderAnthropic:
		return anthropic.NewClient(key.APIKey, policy, logger)
	case llm.ProviderGemini:
		return gemini.NewClient(ctx, key.APIKey, policy, logger)
	case llm.ProviderOllama:
		return ollama.NewClient(key.Host, policy, logger)
	case llm.ProviderOpenAI:
		return openai.NewClient(key.APIKey, key.BaseURL, key.Organization, policy, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
}

// Client resolves preferences through the provider registry and caches
// one adapter per distinct client key.
type Client struct {
	registry    *llm.Registry
	policy      resilience.Policy
	logger      zerolog.Logger
	middlewares []llm.Middleware

	mu       sync.Mutex
	adapters map[llm.ClientKey]llm.Adapter
}

// New creates a client from the merged configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Client {
	enabled := make([]llm.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		enabled = append(enabled, llm.Provider(p))
	}
	providerCfg := cfg.ProviderConfig()
	return &Client{
		registry:    llm.NewRegistry(&providerCfg, enabled),
		policy:      cfg.Policy(),
		logger:      logger.With().Str("component", "client").Logger(),
		middlewares: []llm.Middleware{llm.LoggingMiddleware(logger)},
		adapters:    make(map[llm.ClientKey]llm.Adapter),
	}
}

// NewWithRegistry creates a client around an existing registry.
func NewWithRegistry(registry *llm.Registry, policy resilience.Policy, logger zerolog.Logger) *Client {
	return &Client{
		registry:    registry,
		policy:      policy,
		logger:      logger.With().Str("component", "client").Logger(),
		middlewares: []llm.Middleware{llm.LoggingMiddleware(logger)},
		adapters:    make(map[llm.ClientKey]llm.Adapter),
	}
}

// Registry returns the underlying provider registry.
func (c *Client) Registry() *llm.Registry {
	return c.registry
}

// AdapterFor returns the cached adapter for the key, constructing it on
// first use.
func (c *Client) AdapterFor(ctx context.Context, key llm.ClientKey) (llm.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if adapter, ok := c.adapters[key]; ok {
		return adapter, nil
	}

	adapter, err := NewAdapter(ctx, key, c.policy, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", key.Provider, err)
	}
	adapter = llm.WrapWithMiddleware(adapter, c.middlewares...)
	c.adapters[key] = adapter
	c.logger.Debug().
		Str("provider", string(key.Provider)).
		Str("model", key.Model).
		Msg("created provider adapter")
	return adapter, nil
}

// Resolve picks the first enabled, configured provider from the
// preference list and returns its adapter and client key.
func (c *Client) Resolve(ctx context.Context, prefs []llm.Preference) (llm.Adapter, *llm.ClientKey, error) {
	key, err := c.registry.Resolve(prefs)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := c.AdapterFor(ctx, *key)
	if err != nil {
		return nil, nil, err
	}
	return adapter, key, nil
}

// Run resolves a provider from the preferences and executes the
// orchestration request against it. The request's model is filled from
// the resolved key when unset.
func (c *Client) Run(ctx context.Context, prefs []llm.Preference, req *agent.Request) (*agent.Result, error) {
	adapter, key, err := c.Resolve(ctx, prefs)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = key.Model
	}
	engine := agent.NewEngine(adapter, c.logger)
	return engine.Run(ctx, req)
}
