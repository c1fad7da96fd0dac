package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
	"github.com/jensroth-git/unifiedai/schema"
)

// The API does not expose retry-after on rate limit errors through the
// client library, so a fixed hint is used.
const defaultRetryAfter = 60 * time.Second

// Transport issues one chat completion call.
type Transport interface {
	Send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type sdkTransport struct {
	client *openai.Client
}

func (t *sdkTransport) Send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return t.client.CreateChatCompletion(ctx, req)
}

// Client implements llm.Adapter for the OpenAI chat completions API and
// OpenAI-compatible endpoints.
type Client struct {
	transport Transport
	policy    resilience.Policy
	pacer     *resilience.Pacer
	logger    zerolog.Logger
}

// NewClient creates a Client backed by go-openai. baseURL and
// organization are optional.
func NewClient(apiKey, baseURL, organization string, policy resilience.Policy, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return NewClientWithTransport(&sdkTransport{client: openai.NewClientWithConfig(config)}, policy, logger), nil
}

// NewClientWithTransport creates a Client with an injected transport.
func NewClientWithTransport(transport Transport, policy resilience.Policy, logger zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		policy:    policy,
		pacer:     resilience.NewPacer(logger),
		logger:    logger.With().Str("component", "openai").Logger(),
	}
}

// Provider implements llm.Adapter.
func (c *Client) Provider() llm.Provider { return llm.ProviderOpenAI }

// Dialect implements llm.Adapter.
func (c *Client) Dialect() schema.Dialect { return schema.DialectOpenAI }

// Generate implements llm.Adapter.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	calls := req.Calls
	if calls == nil {
		calls = llm.NewCallTable()
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: Serialize(req.Conversation, calls),
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		chatReq.Tools = TranslateTools(req.Tools)
		switch req.ToolChoice {
		case llm.ToolChoiceRequired:
			chatReq.ToolChoice = "required"
		default:
			chatReq.ToolChoice = "auto"
		}
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}

	estimate := resilience.EstimateTokens(llm.ApproxChars(req.Conversation))
	if err := c.pacer.Reserve(ctx, estimate); err != nil {
		return nil, err
	}

	chatResp, err := resilience.Do(ctx, c.policy, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		resp, sendErr := c.transport.Send(ctx, chatReq)
		if sendErr != nil {
			return openai.ChatCompletionResponse{}, convertError(sendErr)
		}
		return resp, nil
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

	if len(chatResp.Choices) == 0 {
		// Degrade to an empty result rather than failing the loop.
		c.logger.Warn().Msg("Response contained no choices")
		return &llm.Response{StopReason: llm.StopEndTurn}, nil
	}

	choice := chatResp.Choices[0]
	usage := llm.Usage{
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}
	c.pacer.Confirm(estimate, usage)

	return &llm.Response{
		Messages:   Deserialize(choice, calls),
		StopReason: convertFinishReason(choice.FinishReason),
		Usage:      usage,
	}, nil
}

func convertFinishReason(reason openai.FinishReason) llm.StopReason {
	switch reason {
	case openai.FinishReasonToolCalls:
		return llm.StopToolUse
	case openai.FinishReasonLength:
		return llm.StopMaxTokens
	case openai.FinishReasonStop:
		return llm.StopEndTurn
	default:
		return llm.StopOther
	}
}

// rateInfoFromError derives pacing hints from a rate limit error. The
// retry-after hint marks when the provider's budget window resets.
func rateInfoFromError(err error) llm.RateInfo {
	if !llm.IsRateLimitError(err) {
		return llm.RateInfo{}
	}
	info := llm.RateInfo{Remaining: 0, Known: true}
	if after := llm.ExtractRetryAfter(err); after > 0 {
		info.ResetAt = time.Now().Add(after).Unix()
	}
	return info
}

// convertError maps go-openai errors into the canonical taxonomy.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return llm.NewNetworkError("openai request failed: "+err.Error(), err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		return llm.NewRateLimitError(
			fmt.Sprintf("openai rate limit: %s", apiErr.Message), defaultRetryAfter, err)
	case http.StatusUnauthorized:
		return llm.NewAuthenticationError(
			fmt.Sprintf("openai authentication failed: %s", apiErr.Message), err)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return llm.NewInvalidRequestError(
			fmt.Sprintf("openai invalid request: %s", apiErr.Message), err)
	case http.StatusRequestTimeout:
		return llm.NewTimeoutError(
			fmt.Sprintf("openai request timed out: %s", apiErr.Message), err)
	default:
		if resilience.RetryableStatus(apiErr.HTTPStatusCode) {
			return llm.NewServerError(
				fmt.Sprintf("openai server error: %s", apiErr.Message), apiErr.HTTPStatusCode, err)
		}
		return &llm.Error{
			Type:        llm.ErrorTypeUnknown,
			Message:     fmt.Sprintf("openai api error: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}
}
