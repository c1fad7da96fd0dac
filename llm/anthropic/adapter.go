// Package anthropic converts between the canonical message model and the
// Anthropic Messages API, and implements the llm.Adapter interface on top
// of the official SDK.
package anthropic

import (
	"encoding/json"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/samber/lo"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/schema"
)

// SerializedConversation is the wire-ready shape of one conversation:
// system text hoisted into the dedicated system slot, everything else as
// alternating user/assistant message params.
type SerializedConversation struct {
	System   []anthropic.TextBlockParam
	Messages []anthropic.MessageParam
}

// Serialize converts a canonical conversation to Anthropic wire shape.
// Leading system messages are hoisted into the system slot; tool calls
// recorded in the side-table keep the identifier relationship available
// for deserialization even though this wire format carries native ids.
func Serialize(conv llm.Conversation, calls *llm.CallTable) SerializedConversation {
	var out SerializedConversation

	for _, msg := range conv {
		switch msg.Kind {
		case llm.KindSystem:
			if len(out.Messages) == 0 {
				out.System = append(out.System, anthropic.TextBlockParam{Text: msg.Text})
				continue
			}
			// Mid-conversation system text has no slot; carry it as a
			// bracketed user turn so it is not lost.
			out.Messages = append(out.Messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock("[system] "+msg.Text)))

		case llm.KindText:
			block := anthropic.NewTextBlock(msg.Text)
			if msg.Role == llm.RoleAssistant {
				out.Messages = append(out.Messages, anthropic.NewAssistantMessage(block))
			} else {
				out.Messages = append(out.Messages, anthropic.NewUserMessage(block))
			}

		case llm.KindImage:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				if part.Data == "" {
					// URL-only media has no inline payload to send.
					continue
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(part.MIMEType, part.Data))
			}
			if len(blocks) > 0 {
				out.Messages = append(out.Messages, anthropic.NewUserMessage(blocks...))
			}

		case llm.KindAudio, llm.KindVideo:
			// Not supported by this wire format; dropped rather than failing.
			continue

		case llm.KindToolCall:
			if msg.ToolCall == nil {
				continue
			}
			calls.Record(msg.ToolCall.ID, msg.ToolCall.Name)
			out.Messages = append(out.Messages, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(msg.ToolCall.ID, msg.ToolCall.Arguments, msg.ToolCall.Name)))

		case llm.KindToolResult:
			if msg.ToolResult == nil {
				continue
			}
			out.Messages = append(out.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(
					msg.ToolResult.ID,
					msg.ToolResult.ResultJSON(),
					isErrorResult(msg.ToolResult.Result),
				)))
		}
	}

	return out
}

// Deserialize converts an Anthropic response message to canonical
// messages: text blocks first as observed, then tool use blocks. Every
// observed tool call is recorded in the side-table.
func Deserialize(message *anthropic.Message, calls *llm.CallTable) []llm.Message {
	var out []llm.Message
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			out = append(out, llm.NewTextMessage(llm.RoleAssistant, block.Text))
		case anthropic.ToolUseBlock:
			args := decodeToolInput(block.Input)
			calls.Record(block.ID, block.Name)
			out = append(out, llm.NewToolCallMessage(block.ID, block.Name, args))
		}
		// Unrecognized block types are dropped; the caller logs the anomaly.
	}
	return out
}

// TranslateTool renders a canonical tool spec into the Anthropic tool
// parameter shape.
func TranslateTool(spec llm.ToolSpec) anthropic.ToolUnionParam {
	node := schema.Translate(spec.Parameters, schema.DialectAnthropic)

	inputSchema := anthropic.ToolInputSchemaParam{Type: "object"}
	if props, ok := node["properties"].(map[string]any); ok {
		inputSchema.Properties = props
	}
	if required, ok := node["required"].([]string); ok {
		inputSchema.Required = required
	}

	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        spec.Name,
		Description: anthropic.String(spec.Description),
		InputSchema: inputSchema,
	}}
}

// TranslateTools converts all tool specs for a request.
func TranslateTools(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) anthropic.ToolUnionParam {
		return TranslateTool(spec)
	})
}

// decodeToolInput extracts tool call arguments as a map, tolerating any
// raw shape the SDK hands back.
func decodeToolInput(input any) map[string]any {
	args := make(map[string]any)
	if input == nil {
		return args
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// isErrorResult reports whether a tool result payload represents a tool
// execution failure, so it can be flagged on the wire.
func isErrorResult(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	_, hasErr := m["error"]
	return hasErr && len(m) == 1
}
