package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/resilience"
)

type fakeTransport struct {
	requests []openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	errs     []error
	errIndex int
}

func (t *fakeTransport) Send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	t.requests = append(t.requests, req)
	if t.errIndex < len(t.errs) {
		err := t.errs[t.errIndex]
		t.errIndex++
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
	}
	return t.response, nil
}

func textCompletion(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 7},
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("", "", "", resilience.Policy{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for empty API key")
	}
}

func TestGenerateSimpleExchange(t *testing.T) {
	transport := &fakeTransport{response: textCompletion("4")}
	client := NewClientWithTransport(transport, resilience.Policy{}, zerolog.Nop())

	resp, err := client.Generate(context.Background(), &llm.Request{
		Model: "gpt-4o",
		Conversation: llm.Conversation{
			llm.NewSystemMessage("You are a calculator."),
			llm.NewTextMessage(llm.RoleUser, "What is 2+2?"),
		},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text() != "4" {
		t.Errorf("Expected text '4', got %q", resp.Text())
	}
	if resp.StopReason != llm.StopEndTurn {
		t.Errorf("Expected end_turn, got %s", resp.StopReason)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}

	req := transport.requests[0]
	if req.Model != "gpt-4o" {
		t.Errorf("Unexpected model: %s", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Errorf("Expected 2 serialized messages, got %d", len(req.Messages))
	}
}

func TestGenerateRequiresModel(t *testing.T) {
	client := NewClientWithTransport(&fakeTransport{}, resilience.Policy{}, zerolog.Nop())
	_, err := client.Generate(context.Background(), &llm.Request{
		Conversation: llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err == nil {
		t.Error("Expected error for missing model")
	}
}

func TestGenerateToolChoice(t *testing.T) {
	transport := &fakeTransport{response: textCompletion("ok")}
	client := NewClientWithTransport(transport, resilience.Policy{}, zerolog.Nop())

	tools := []llm.ToolSpec{{Name: "get_weather"}}
	conv := llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")}

	tests := []struct {
		choice   llm.ToolChoice
		expected any
		sends    bool
	}{
		{llm.ToolChoiceAuto, "auto", true},
		{llm.ToolChoiceRequired, "required", true},
		{llm.ToolChoiceNone, nil, false},
	}

	for _, tt := range tests {
		transport.requests = nil
		_, err := client.Generate(context.Background(), &llm.Request{
			Model:        "gpt-4o",
			Conversation: conv,
			Tools:        tools,
			ToolChoice:   tt.choice,
		})
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", tt.choice, err)
		}
		req := transport.requests[0]
		if tt.sends {
			if len(req.Tools) != 1 {
				t.Errorf("%s: expected tools to be sent", tt.choice)
			}
			if req.ToolChoice != tt.expected {
				t.Errorf("%s: expected tool choice %v, got %v", tt.choice, tt.expected, req.ToolChoice)
			}
		} else {
			if len(req.Tools) != 0 {
				t.Errorf("%s: expected no tools", tt.choice)
			}
		}
	}
}

func TestGenerateEmptyChoicesDegrades(t *testing.T) {
	transport := &fakeTransport{response: openai.ChatCompletionResponse{}}
	client := NewClientWithTransport(transport, resilience.Policy{}, zerolog.Nop())

	resp, err := client.Generate(context.Background(), &llm.Request{
		Model:        "gpt-4o",
		Conversation: llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Expected degraded response, got error %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("Expected no messages, got %d", len(resp.Messages))
	}
	if resp.StopReason != llm.StopEndTurn {
		t.Errorf("Expected end_turn, got %s", resp.StopReason)
	}
}

func TestGenerateRetriesServerError(t *testing.T) {
	transport := &fakeTransport{
		response: textCompletion("ok"),
		errs:     []error{&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "overloaded"}},
	}
	client := NewClientWithTransport(transport, resilience.Policy{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	_, err := client.Generate(context.Background(), &llm.Request{
		Model:        "gpt-4o",
		Conversation: llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Expected recovery after retry, got %v", err)
	}
	if len(transport.requests) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(transport.requests))
	}
}

func TestGenerateDoesNotRetryBadRequest(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{&openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad schema"}},
	}
	client := NewClientWithTransport(transport, resilience.Policy{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	_, err := client.Generate(context.Background(), &llm.Request{
		Model:        "gpt-4o",
		Conversation: llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) || llmErr.Type != llm.ErrorTypeInvalidRequest {
		t.Fatalf("Expected invalid request error, got %v", err)
	}
	if len(transport.requests) != 1 {
		t.Errorf("Expected 1 attempt, got %d", len(transport.requests))
	}
}

func TestGenerateRateLimitUpdatesPacer(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}},
	}
	client := NewClientWithTransport(transport, resilience.Policy{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	// the retry-after hint is 60s, so cancel instead of waiting it out;
	// the pacer observation happens before the delay
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, &llm.Request{
		Model:        "gpt-4o",
		Conversation: llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("Expected error from cancelled retry wait")
	}
	if got := client.pacer.Remaining(); got != 0 {
		t.Errorf("Expected rate limit observation to zero the pacer budget, got %d", got)
	}
}

func TestRateInfoFromError(t *testing.T) {
	info := rateInfoFromError(convertError(&openai.APIError{HTTPStatusCode: 429}))
	if !info.Known || info.Remaining != 0 {
		t.Errorf("Expected known zero-budget info, got %+v", info)
	}
	if info.ResetAt == 0 {
		t.Error("Expected reset time derived from the retry-after hint")
	}
	if info := rateInfoFromError(errors.New("connection refused")); info.Known {
		t.Errorf("Expected non-rate-limit error to be ignored, got %+v", info)
	}
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected llm.ErrorType
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: 429}, llm.ErrorTypeRateLimit},
		{"auth", &openai.APIError{HTTPStatusCode: 401}, llm.ErrorTypeAuthentication},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, llm.ErrorTypeInvalidRequest},
		{"too large", &openai.APIError{HTTPStatusCode: 413}, llm.ErrorTypeInvalidRequest},
		{"timeout", &openai.APIError{HTTPStatusCode: 408}, llm.ErrorTypeTimeout},
		{"server", &openai.APIError{HTTPStatusCode: 502}, llm.ErrorTypeServerError},
		{"teapot", &openai.APIError{HTTPStatusCode: 418}, llm.ErrorTypeUnknown},
		{"transport", errors.New("connection refused"), llm.ErrorTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			converted := convertError(tt.err)
			var llmErr *llm.Error
			if !errors.As(converted, &llmErr) {
				t.Fatalf("Expected canonical error, got %T", converted)
			}
			if llmErr.Type != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, llmErr.Type)
			}
		})
	}
}

func TestConvertErrorRateLimitHint(t *testing.T) {
	converted := convertError(&openai.APIError{HTTPStatusCode: 429})
	if got := llm.ExtractRetryAfter(converted); got != defaultRetryAfter {
		t.Errorf("Expected fixed retry-after hint, got %v", got)
	}
}

func TestConvertFinishReason(t *testing.T) {
	tests := []struct {
		reason   openai.FinishReason
		expected llm.StopReason
	}{
		{openai.FinishReasonStop, llm.StopEndTurn},
		{openai.FinishReasonToolCalls, llm.StopToolUse},
		{openai.FinishReasonLength, llm.StopMaxTokens},
		{openai.FinishReasonContentFilter, llm.StopOther},
	}
	for _, tt := range tests {
		if got := convertFinishReason(tt.reason); got != tt.expected {
			t.Errorf("convertFinishReason(%s): expected %s, got %s", tt.reason, tt.expected, got)
		}
	}
}
