// Package openai converts between the canonical message model and the
// OpenAI chat completions API, and implements llm.Adapter on top of the
// go-openai client.
package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/schema"
)

// Serialize converts a canonical conversation to chat completion
// messages. System messages use the native system role; media travels as
// data-URL image parts; tool results become role "tool" turns tagged with
// the originating call id.
func Serialize(conv llm.Conversation, calls *llm.CallTable) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	for _, msg := range conv {
		switch msg.Kind {
		case llm.KindSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Text,
			})

		case llm.KindText:
			role := openai.ChatMessageRoleUser
			if msg.Role == llm.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Text})

		case llm.KindImage:
			parts := make([]openai.ChatMessagePart, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				url := part.URL
				if url == "" {
					url = EncodeDataURL(part.MIMEType, part.Data)
				}
				imageURL := openai.ChatMessageImageURL{URL: url}
				if part.Detail != "" {
					imageURL.Detail = openai.ImageURLDetail(part.Detail)
				}
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &imageURL,
				})
			}
			if len(parts) > 0 {
				out = append(out, openai.ChatCompletionMessage{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				})
			}

		case llm.KindAudio, llm.KindVideo:
			// Not representable in the chat completions payload; dropped.
			continue

		case llm.KindToolCall:
			if msg.ToolCall == nil {
				continue
			}
			calls.Record(msg.ToolCall.ID, msg.ToolCall.Name)
			argsJSON, err := json.Marshal(msg.ToolCall.Arguments)
			if err != nil {
				argsJSON = []byte("{}")
			}
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   msg.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      msg.ToolCall.Name,
						Arguments: string(argsJSON),
					},
				}},
			})

		case llm.KindToolResult:
			if msg.ToolResult == nil {
				continue
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.ToolResult.ResultJSON(),
				ToolCallID: msg.ToolResult.ID,
			})
		}
	}

	return out
}

// Deserialize converts one chat completion choice to canonical messages.
// Tool call identifiers arrive natively and are recorded in the
// side-table so a later result turn can be relabeled with the tool name.
func Deserialize(choice openai.ChatCompletionChoice, calls *llm.CallTable) []llm.Message {
	var out []llm.Message

	if choice.Message.Content != "" {
		out = append(out, llm.NewTextMessage(llm.RoleAssistant, choice.Message.Content))
	}
	for _, toolCall := range choice.Message.ToolCalls {
		args := make(map[string]any)
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}
		}
		calls.Record(toolCall.ID, toolCall.Function.Name)
		out = append(out, llm.NewToolCallMessage(toolCall.ID, toolCall.Function.Name, args))
	}

	return out
}

// TranslateTool renders a canonical tool spec into the OpenAI function
// definition shape.
func TranslateTool(spec llm.ToolSpec) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema.Translate(spec.Parameters, schema.DialectOpenAI),
		},
	}
}

// TranslateTools converts all tool specs for a request.
func TranslateTools(specs []llm.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		result = append(result, TranslateTool(spec))
	}
	return result
}

// EncodeDataURL builds a data URL from a MIME type and base64 payload.
func EncodeDataURL(mimeType, data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, data)
}

// DecodeDataURL splits a data URL into its MIME type and base64 payload.
// Parsing splits at the first ':', ';' and ',' so payloads containing
// those characters survive. Non-data URLs return ok=false.
func DecodeDataURL(url string) (mimeType, data string, ok bool) {
	scheme, rest, found := strings.Cut(url, ":")
	if !found || scheme != "data" {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, _, _ = strings.Cut(header, ";")
	return mimeType, payload, true
}
