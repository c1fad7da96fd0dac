package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
	"github.com/jensroth-git/unifiedai/schema"
)

// SendRequest is the wire-ready request handed to the transport: the last
// user content's parts are sent as the message, everything before it is
// chat history.
type SendRequest struct {
	Model             string
	SystemInstruction string
	Tools             []*genai.Tool
	ToolMode          genai.FunctionCallingMode
	History           []*genai.Content
	Parts             []genai.Part
	MaxTokens         int
	Temperature       float64
}

// Transport issues one generate call.
type Transport interface {
	Send(ctx context.Context, req SendRequest) (*genai.GenerateContentResponse, error)
}

type sdkTransport struct {
	client *genai.Client
}

func (t *sdkTransport) Send(ctx context.Context, req SendRequest) (*genai.GenerateContentResponse, error) {
	model := t.client.GenerativeModel(req.Model)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	if len(req.Tools) > 0 {
		model.Tools = req.Tools
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: req.ToolMode},
		}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}

	cs := model.StartChat()
	cs.History = req.History
	return cs.SendMessage(ctx, req.Parts...)
}

// Client implements llm.Adapter for the Gemini API.
type Client struct {
	transport Transport
	policy    resilience.Policy
	pacer     *resilience.Pacer
	logger    zerolog.Logger
}

// NewClient creates a Client backed by the generative-ai SDK.
func NewClient(ctx context.Context, apiKey string, policy resilience.Policy, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewClientWithTransport(&sdkTransport{client: client}, policy, logger), nil
}

// NewClientWithTransport creates a Client with an injected transport.
func NewClientWithTransport(transport Transport, policy resilience.Policy, logger zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		policy:    policy,
		pacer:     resilience.NewPacer(logger),
		logger:    logger.With().Str("component", "gemini").Logger(),
	}
}

// Provider implements llm.Adapter.
func (c *Client) Provider() llm.Provider { return llm.ProviderGemini }

// Dialect implements llm.Adapter.
func (c *Client) Dialect() schema.Dialect { return schema.DialectGemini }

// Generate implements llm.Adapter.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	calls := req.Calls
	if calls == nil {
		calls = llm.NewCallTable()
	}

	serialized := Serialize(req.Conversation, calls)
	if len(serialized.History) == 0 {
		return nil, llm.NewInvalidRequestError("conversation has no sendable content", nil)
	}

	// The final content entry is the outgoing message; the rest is history.
	last := serialized.History[len(serialized.History)-1]
	history := serialized.History[:len(serialized.History)-1]

	sendReq := SendRequest{
		Model:             req.Model,
		SystemInstruction: serialized.SystemInstruction,
		History:           history,
		Parts:             last.Parts,
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		sendReq.Tools = TranslateTools(req.Tools)
		sendReq.ToolMode = genai.FunctionCallingAuto
		if req.ToolChoice == llm.ToolChoiceRequired {
			sendReq.ToolMode = genai.FunctionCallingAny
		}
	}

	estimate := resilience.EstimateTokens(llm.ApproxChars(req.Conversation))
	if err := c.pacer.Reserve(ctx, estimate); err != nil {
		return nil, err
	}

	resp, err := resilience.Do(ctx, c.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		r, sendErr := c.transport.Send(ctx, sendReq)
		if sendErr != nil {
			return nil, convertError(sendErr)
		}
		return r, nil
	},
		resilience.WithLogger(c.logger),
		resilience.WithDelayOverride(llm.ExtractRetryAfter),
		resilience.WithRetryNotify(func(n resilience.RetryNotification) {
			c.pacer.Observe(rateInfoFromError(n.Err))
		}),
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		c.logger.Warn().Msg("Response contained no candidates")
		return &llm.Response{StopReason: llm.StopEndTurn}, nil
	}

	candidate := resp.Candidates[0]
	messages := Deserialize(candidate, calls)

	var usage llm.Usage
	if resp.UsageMetadata != nil {
		usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
		c.pacer.Confirm(estimate, usage)
	}

	return &llm.Response{
		Messages:   messages,
		StopReason: stopReasonFor(candidate, messages),
		Usage:      usage,
	}, nil
}

// stopReasonFor derives the canonical stop reason. The wire format has no
// dedicated tool stop marker, so a turn containing function calls counts
// as a tool stop.
func stopReasonFor(candidate *genai.Candidate, messages []llm.Message) llm.StopReason {
	for _, msg := range messages {
		if msg.Kind == llm.KindToolCall {
			return llm.StopToolUse
		}
	}
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return llm.StopMaxTokens
	}
	return llm.StopEndTurn
}

// rateInfoFromError derives pacing hints from a rate limit error.
func rateInfoFromError(err error) llm.RateInfo {
	if !llm.IsRateLimitError(err) {
		return llm.RateInfo{}
	}
	return llm.RateInfo{Remaining: 0, Known: true}
}

// convertError maps SDK errors into the canonical taxonomy via status
// markers in the message, the same way the other adapters without typed
// SDK errors do.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit"):
		return llm.NewRateLimitError("gemini rate limit: "+msg, 0, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(lower, "api key"):
		return llm.NewAuthenticationError("gemini authentication failed: "+msg, err)
	case strings.Contains(msg, "400") || strings.Contains(lower, "invalid"):
		return llm.NewInvalidRequestError("gemini invalid request: "+msg, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(lower, "unavailable"):
		return llm.NewServerError("gemini server error: "+msg, 500, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return llm.NewTimeoutError("gemini request timed out: "+msg, err)
	default:
		return llm.NewNetworkError("gemini request failed: "+msg, err)
	}
}
