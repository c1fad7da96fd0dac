package unifiedai

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/config"
	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
)

func TestNewAdapterUnknownProvider(t *testing.T) {
	_, err := NewAdapter(context.Background(), llm.ClientKey{Provider: "frontier"}, resilience.Policy{}, zerolog.Nop())
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNewAdapterOllama(t *testing.T) {
	key := llm.ClientKey{Provider: llm.ProviderOllama, Host: "http://localhost:11434", Model: "llama3.2"}
	adapter, err := NewAdapter(context.Background(), key, resilience.Policy{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	if adapter.Provider() != llm.ProviderOllama {
		t.Errorf("Unexpected provider: %s", adapter.Provider())
	}
}

func TestAdapterForCaches(t *testing.T) {
	client := NewWithRegistry(llm.NewRegistry(&llm.ProviderConfig{}, []llm.Provider{llm.ProviderOllama}), resilience.Policy{}, zerolog.Nop())
	key := llm.ClientKey{Provider: llm.ProviderOllama, Host: "http://localhost:11434", Model: "llama3.2"}

	first, err := client.AdapterFor(context.Background(), key)
	if err != nil {
		t.Fatalf("AdapterFor failed: %v", err)
	}
	second, err := client.AdapterFor(context.Background(), key)
	if err != nil {
		t.Fatalf("AdapterFor failed: %v", err)
	}
	if first != second {
		t.Error("Expected same cached adapter instance")
	}
}

func TestResolveNoAvailableProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	client := NewWithRegistry(llm.NewRegistry(&llm.ProviderConfig{}, nil), resilience.Policy{}, zerolog.Nop())
	_, _, err := client.Resolve(context.Background(), []llm.Preference{{Provider: llm.ProviderAnthropic}})
	if err == nil {
		t.Error("Expected error when no provider is available")
	}
}

func TestNewBuildsEnabledSet(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = []string{"ollama"}
	cfg.Ollama.Model = "llama3.2"

	client := New(cfg, zerolog.Nop())
	if !client.Registry().IsEnabled(llm.ProviderOllama) {
		t.Error("Expected ollama enabled")
	}
	if client.Registry().IsEnabled(llm.ProviderAnthropic) {
		t.Error("Expected anthropic disabled")
	}
}
