package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
	"github.com/jensroth-git/unifiedai/schema"
)

// Transport issues one chat call.
type Transport interface {
	Send(ctx context.Context, req *api.ChatRequest) (api.ChatResponse, error)
}

type sdkTransport struct {
	client *api.Client
}

func (t *sdkTransport) Send(ctx context.Context, req *api.ChatRequest) (api.ChatResponse, error) {
	var chatResp api.ChatResponse
	err := t.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	return chatResp, err
}

// Client implements llm.Adapter for a local or remote Ollama server.
type Client struct {
	transport Transport
	policy    resilience.Policy
	logger    zerolog.Logger
}

// NewClient creates a Client for the given host. An empty host falls back
// to the environment-configured default.
func NewClient(host string, policy resilience.Policy, logger zerolog.Logger) (*Client, error) {
	var client *api.Client

	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return NewClientWithTransport(&sdkTransport{client: client}, policy, logger), nil
}

// NewClientWithTransport creates a Client with an injected transport.
func NewClientWithTransport(transport Transport, policy resilience.Policy, logger zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		policy:    policy,
		logger:    logger.With().Str("component", "ollama").Logger(),
	}
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Provider implements llm.Adapter.
func (c *Client) Provider() llm.Provider { return llm.ProviderOllama }

// Dialect implements llm.Adapter.
func (c *Client) Dialect() schema.Dialect { return schema.DialectOllama }

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

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: Serialize(req.Conversation, calls),
		Stream:   &stream,
		Options:  make(map[string]any),
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		chatReq.Tools = TranslateTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Options["temperature"] = req.Temperature
	}

	chatResp, err := resilience.Do(ctx, c.policy, func(ctx context.Context) (api.ChatResponse, error) {
		resp, sendErr := c.transport.Send(ctx, chatReq)
		if sendErr != nil {
			return api.ChatResponse{}, convertError(sendErr)
		}
		return resp, nil
	}, resilience.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	messages := Deserialize(chatResp.Message, calls)
	messages = c.coerceToolCalls(messages, req.Tools)

	var usage llm.Usage
	if chatResp.PromptEvalCount > 0 {
		usage.InputTokens = chatResp.PromptEvalCount
	}
	if chatResp.EvalCount > 0 {
		usage.OutputTokens = chatResp.EvalCount
	}

	stopReason := llm.StopEndTurn
	if len(chatResp.Message.ToolCalls) > 0 {
		stopReason = llm.StopToolUse
	}

	return &llm.Response{
		Messages:   messages,
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

// coerceToolCalls runs schema coercion over tool call arguments in the
// response. A call that fails coercion keeps its raw arguments; the
// tool's own validation reports the problem back to the model.
func (c *Client) coerceToolCalls(messages []llm.Message, tools []llm.ToolSpec) []llm.Message {
	if len(tools) == 0 {
		return messages
	}

	params := make(map[string]*schema.Type, len(tools))
	for _, tool := range tools {
		params[tool.Name] = tool.Parameters
	}

	for i, msg := range messages {
		if msg.Kind != llm.KindToolCall || msg.ToolCall == nil {
			continue
		}
		p, ok := params[msg.ToolCall.Name]
		if !ok || p == nil {
			continue
		}
		coerced, err := CoerceArguments(msg.ToolCall.Name, msg.ToolCall.Arguments, p)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("tool", msg.ToolCall.Name).
				Msg("tool call arguments failed coercion")
			continue
		}
		messages[i].ToolCall.Arguments = coerced
	}
	return messages
}

// convertError maps transport errors into the canonical taxonomy. The
// client library surfaces plain errors, so classification is by message.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return llm.NewNetworkError("ollama unreachable: "+msg, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return llm.NewTimeoutError("ollama request timed out: "+msg, err)
	case strings.Contains(lower, "not found"):
		return llm.NewInvalidRequestError("ollama model not found: "+msg, err)
	case strings.Contains(msg, "500"):
		return llm.NewServerError("ollama server error: "+msg, 500, err)
	default:
		return llm.NewNetworkError("ollama request failed: "+msg, err)
	}
}
