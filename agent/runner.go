// Package agent drives the multi-round tool orchestration loop: it issues
// provider calls through an adapter, executes requested tools, appends
// results, and applies stop and cancellation rules.
package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/llm"
)

// DefaultMaxToolRoundtrips bounds tool rounds when the caller does not
// say otherwise.
const DefaultMaxToolRoundtrips = 5

// StopReason explains why a run ended, so callers can distinguish natural
// completion from cancellation and budget exhaustion.
type StopReason string

const (
	// StopEndTurn means the model finished without requesting tools.
	StopEndTurn StopReason = "end_turn"
	// StopToolStop means a tool set ForceStop during execution.
	StopToolStop StopReason = "tool_stop"
	// StopCancelled means the cancellation signal was set at a round boundary.
	StopCancelled StopReason = "cancelled"
	// StopMaxRoundtrips means the call budget ran out.
	StopMaxRoundtrips StopReason = "max_roundtrips"
)

// TextCallback observes each assistant text message as it is appended.
// Callbacks run in message order and each completes before the next one
// starts or before tool execution begins.
type TextCallback func(ctx context.Context, msg llm.Message) error

// Request configures one orchestration run.
type Request struct {
	Model        string
	Conversation llm.Conversation
	Tools        *Registry
	ToolChoice   llm.ToolChoice

	// MaxToolRoundtrips bounds tool rounds: the run performs at most
	// MaxToolRoundtrips+1 provider calls. Zero means exactly one call.
	MaxToolRoundtrips int

	MaxTokens   int
	Temperature float64

	Signal *Signal
	OnText TextCallback
}

// NewRequest creates a run request with the default roundtrip budget.
// Set MaxToolRoundtrips to zero afterwards for a strict single call.
func NewRequest(model string, conv llm.Conversation) *Request {
	return &Request{
		Model:             model,
		Conversation:      conv,
		ToolChoice:        llm.ToolChoiceAuto,
		MaxToolRoundtrips: DefaultMaxToolRoundtrips,
	}
}

// Result is the outcome of one orchestration run.
type Result struct {
	// AppendedMessages holds everything the run added to the
	// conversation, in order: assistant turns, tool calls, tool results.
	AppendedMessages []llm.Message

	// FinalText is the text of the trailing message when it is a text
	// message, empty when the run ended mid-tool-round.
	FinalText string

	StopReason StopReason

	// Usage accumulates token counts across all provider calls.
	Usage llm.Usage

	// Calls is the number of provider calls issued.
	Calls int
}

// Engine runs orchestration loops against one provider adapter.
type Engine struct {
	adapter llm.Adapter
	logger  zerolog.Logger
}

// NewEngine creates an engine for the given adapter.
func NewEngine(adapter llm.Adapter, logger zerolog.Logger) *Engine {
	return &Engine{
		adapter: adapter,
		logger: logger.With().
			Str("component", "engine").
			Str("provider", string(adapter.Provider())).
			Logger(),
	}
}

// Run executes the orchestration loop: call the provider, execute any
// requested tools in order, append results, and repeat until the model
// stops asking for tools, a tool forces a stop, the signal is set, or
// the call budget runs out. Provider failures after retry exhaustion
// propagate to the caller with no partial result.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	result := &Result{}
	conv := req.Conversation

	// The call-id side-table lives exactly as long as this run.
	calls := llm.NewCallTable()
	budget := req.MaxToolRoundtrips + 1

	for result.Calls < budget {
		if req.Signal != nil && req.Signal.IsSet() {
			result.StopReason = StopCancelled
			result.FinalText = finalText(result.AppendedMessages)
			return result, nil
		}

		resp, err := e.adapter.Generate(ctx, &llm.Request{
			Model:        req.Model,
			Conversation: conv,
			Tools:        e.toolSpecs(req),
			ToolChoice:   req.ToolChoice,
			MaxTokens:    req.MaxTokens,
			Temperature:  req.Temperature,
			Calls:        calls,
		})
		if err != nil {
			return nil, err
		}

		result.Calls++
		result.Usage.InputTokens += resp.Usage.InputTokens
		result.Usage.OutputTokens += resp.Usage.OutputTokens

		e.logger.Debug().
			Int("call", result.Calls).
			Int("messages", len(resp.Messages)).
			Str("stop_reason", string(resp.StopReason)).
			Msg("Provider call completed")

		for _, msg := range resp.Messages {
			conv = conv.Append(msg)
			result.AppendedMessages = append(result.AppendedMessages, msg)
			if msg.Kind == llm.KindText && req.OnText != nil {
				if err := req.OnText(ctx, msg); err != nil {
					return nil, fmt.Errorf("text callback failed: %w", err)
				}
			}
		}

		toolCalls := resp.ToolCalls()
		if len(toolCalls) == 0 {
			result.StopReason = StopEndTurn
			result.FinalText = finalText(result.AppendedMessages)
			return result, nil
		}

		forceStop := false
		for _, call := range toolCalls {
			resultMsg, stopped := e.executeToolCall(ctx, req, call.ToolCall)
			conv = conv.Append(resultMsg)
			result.AppendedMessages = append(result.AppendedMessages, resultMsg)
			if stopped {
				// Remaining same-turn tool calls still execute; only the
				// next provider call is skipped.
				forceStop = true
			}
		}

		if forceStop {
			result.StopReason = StopToolStop
			result.FinalText = finalText(result.AppendedMessages)
			return result, nil
		}
	}

	result.StopReason = StopMaxRoundtrips
	result.FinalText = finalText(result.AppendedMessages)
	return result, nil
}

// executeToolCall runs one requested tool and returns its result message
// and whether the tool forced a stop. A missing tool is not an error; it
// produces a synthetic not-found result so the model can recover.
func (e *Engine) executeToolCall(ctx context.Context, req *Request, call *llm.ToolCallBlock) (llm.Message, bool) {
	var def ToolDefinition
	found := false
	if req.Tools != nil {
		def, found = req.Tools.Lookup(call.Name)
	}
	if !found {
		e.logger.Warn().Str("tool", call.Name).Msg("Requested tool not found in registry")
		return llm.NewToolResultMessage(call.ID, call.Name, map[string]any{
			"error": fmt.Sprintf("tool not found: %s", call.Name),
		}), false
	}

	opts := ExecutionOptions{}
	value, err := def.Execute(ctx, call.Arguments, &opts)
	if err != nil {
		e.logger.Warn().Str("tool", call.Name).Err(err).Msg("Tool execution failed")
		value = map[string]any{"error": err.Error()}
	}

	return llm.NewToolResultMessage(call.ID, call.Name, value), opts.ForceStop
}

func (e *Engine) toolSpecs(req *Request) []llm.ToolSpec {
	if req.Tools == nil || req.Tools.Len() == 0 {
		return nil
	}
	return req.Tools.Specs()
}

// finalText derives the run's final text from the trailing appended
// message: text messages contribute their text, anything else is empty.
func finalText(appended []llm.Message) string {
	if len(appended) == 0 {
		return ""
	}
	if last := appended[len(appended)-1]; last.Kind == llm.KindText {
		return last.Text
	}
	return ""
}
