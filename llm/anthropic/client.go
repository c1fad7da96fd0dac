package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
	"github.com/jensroth-git/unifiedai/schema"
)

const defaultMaxTokens = 4096

// Transport issues one Messages API call. The SDK client is the
// production implementation; tests substitute a fake.
type Transport interface {
	Send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type sdkTransport struct {
	client *anthropic.Client
}

func (t *sdkTransport) Send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return t.client.Messages.New(ctx, params)
}

// Client implements llm.Adapter for Anthropic's Messages API.
type Client struct {
	transport Transport
	policy    resilience.Policy
	pacer     *resilience.Pacer
	logger    zerolog.Logger
}

// NewClient creates a Client backed by the official SDK.
func NewClient(apiKey string, policy resilience.Policy, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewClientWithTransport(&sdkTransport{client: &client}, policy, logger), nil
}

// NewClientWithTransport creates a Client with an injected transport.
func NewClientWithTransport(transport Transport, policy resilience.Policy, logger zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		policy:    policy,
		pacer:     resilience.NewPacer(logger),
		logger:    logger.With().Str("component", "anthropic").Logger(),
	}
}

// Provider implements llm.Adapter.
func (c *Client) Provider() llm.Provider { return llm.ProviderAnthropic }

// Dialect implements llm.Adapter.
func (c *Client) Dialect() schema.Dialect { return schema.DialectAnthropic }

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

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  serialized.Messages,
		System:    serialized.System,
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		params.Tools = TranslateTools(req.Tools)
	}

	estimate := resilience.EstimateTokens(llm.ApproxChars(req.Conversation))
	if err := c.pacer.Reserve(ctx, estimate); err != nil {
		return nil, err
	}

	message, err := resilience.Do(ctx, c.policy, func(ctx context.Context) (*anthropic.Message, error) {
		msg, sendErr := c.transport.Send(ctx, params)
		if sendErr != nil {
			return nil, convertError(sendErr)
		}
		return msg, nil
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

	messages := Deserialize(message, calls)
	if len(messages) == 0 {
		c.logger.Warn().Msg("Response contained no recognizable content blocks")
	}

	usage := llm.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
	c.pacer.Confirm(estimate, usage)

	return &llm.Response{
		Messages:   messages,
		StopReason: convertStopReason(string(message.StopReason)),
		Usage:      usage,
	}, nil
}

func convertStopReason(reason string) llm.StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return llm.StopEndTurn
	case "tool_use":
		return llm.StopToolUse
	case "max_tokens":
		return llm.StopMaxTokens
	default:
		return llm.StopOther
	}
}

// convertError maps SDK errors into the canonical taxonomy. The SDK does
// not expose a stable typed error across versions, so classification
// falls back to status markers in the message.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(lower, "rate limit"):
		return llm.NewRateLimitError("anthropic rate limit: "+msg, 0, err)
	case strings.Contains(msg, "401") || strings.Contains(lower, "authentication"):
		return llm.NewAuthenticationError("anthropic authentication failed: "+msg, err)
	case strings.Contains(msg, "400") || strings.Contains(lower, "invalid_request"):
		return llm.NewInvalidRequestError("anthropic invalid request: "+msg, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(lower, "overloaded"):
		return llm.NewServerError("anthropic server error: "+msg, 500, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return llm.NewTimeoutError("anthropic request timed out: "+msg, err)
	default:
		return llm.NewNetworkError("anthropic request failed: "+msg, err)
	}
}

// rateInfoFromError derives pacing hints from a rate limit error.
func rateInfoFromError(err error) llm.RateInfo {
	if !llm.IsRateLimitError(err) {
		return llm.RateInfo{}
	}
	return llm.RateInfo{Remaining: 0, Known: true}
}
