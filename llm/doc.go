// Package llm defines the provider-neutral message model shared by all
// provider adapters: messages, conversations, tool call plumbing, the
// error taxonomy, and the Adapter interface. Per-provider serialization
// lives in the subpackages (anthropic, openai, gemini, ollama).
package llm
