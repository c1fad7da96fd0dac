package llm

import (
	"context"

	"github.com/jensroth-git/unifiedai/schema"
)

// ToolChoice controls how the model is allowed to use tools.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone forbids tool calls for this request.
	ToolChoiceNone ToolChoice = "none"
	// ToolChoiceRequired forces the model to call at least one tool.
	ToolChoiceRequired ToolChoice = "required"
)

// ToolSpec describes one tool offered to the model: a name, a
// human-readable description, and a typed parameter schema that each
// adapter renders into its provider's schema dialect.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *schema.Type
}

// Request is a provider-neutral generation request.
type Request struct {
	Model        string
	Conversation Conversation
	Tools        []ToolSpec
	ToolChoice   ToolChoice
	MaxTokens    int
	Temperature  float64

	// Calls carries identifier state for providers whose wire formats
	// omit tool call identifiers. The orchestrator owns the table's
	// lifetime; adapters that need it read and write it during
	// serialization and deserialization.
	Calls *CallTable
}

// StopReason describes why the provider stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// Usage reports token consumption for a single provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// RateInfo carries rate limit state parsed from provider response
// headers, when the provider exposes it.
type RateInfo struct {
	Remaining int
	ResetAt   int64 // unix seconds; zero when unknown
	Known     bool
}

// Response is a provider-neutral generation response. Messages holds the
// assistant output already decoded into canonical form: zero or more text
// messages followed by zero or more tool call messages.
type Response struct {
	Messages   []Message
	StopReason StopReason
	Usage      Usage
	Rate       RateInfo
}

// ToolCalls returns the tool call messages in the response, in order.
func (r *Response) ToolCalls() []Message {
	var calls []Message
	for _, msg := range r.Messages {
		if msg.Kind == KindToolCall {
			calls = append(calls, msg)
		}
	}
	return calls
}

// Text returns the concatenated text content of the response.
func (r *Response) Text() string {
	var out string
	for _, msg := range r.Messages {
		if msg.Kind == KindText {
			if out != "" {
				out += "\n"
			}
			out += msg.Text
		}
	}
	return out
}

// Adapter converts between the canonical message model and one provider's
// wire format, and executes generation requests against that provider.
// Implementations live in the per-provider subpackages.
type Adapter interface {
	// Generate sends the request to the provider and decodes the reply.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Dialect identifies the JSON Schema dialect the provider accepts
	// for tool parameter schemas.
	Dialect() schema.Dialect

	// Provider returns the provider identifier for logging and registry keys.
	Provider() Provider
}

// Middleware wraps an adapter with cross-cutting behavior.
type Middleware func(Adapter) Adapter

// WrapWithMiddleware applies middlewares to an adapter, outermost first.
func WrapWithMiddleware(a Adapter, mws ...Middleware) Adapter {
	for i := len(mws) - 1; i >= 0; i-- {
		a = mws[i](a)
	}
	return a
}
