// Package ollama converts between the canonical message model and the
// Ollama chat API. Like Gemini, the wire format has no tool call
// identifiers; the adapter synthesizes them and keeps the pairing in the
// call-id side-table. Local models are loose with argument types, so
// outgoing tool call arguments are validated and coerced against the
// tool's schema.
package ollama

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/schema"
)

// Serialize converts a canonical conversation to Ollama chat messages.
// All message kinds flatten into role-tagged messages: system keeps its
// native role, media rides as raw image bytes on a user message, and
// tool results become role "tool" turns.
func Serialize(conv llm.Conversation, calls *llm.CallTable) []api.Message {
	var out []api.Message

	for _, msg := range conv {
		switch msg.Kind {
		case llm.KindSystem:
			out = append(out, api.Message{Role: "system", Content: msg.Text})

		case llm.KindText:
			role := "user"
			if msg.Role == llm.RoleAssistant {
				role = "assistant"
			}
			out = append(out, api.Message{Role: role, Content: msg.Text})

		case llm.KindImage:
			var images []api.ImageData
			for _, part := range msg.Parts {
				if part.Data == "" {
					continue
				}
				raw, err := base64.StdEncoding.DecodeString(part.Data)
				if err != nil {
					continue
				}
				images = append(images, api.ImageData(raw))
			}
			if len(images) > 0 {
				out = append(out, api.Message{Role: "user", Images: images})
			}

		case llm.KindAudio, llm.KindVideo:
			// Not supported by this wire format; dropped.
			continue

		case llm.KindToolCall:
			if msg.ToolCall == nil {
				continue
			}
			calls.Record(msg.ToolCall.ID, msg.ToolCall.Name)
			args := make(api.ToolCallFunctionArguments, len(msg.ToolCall.Arguments))
			for k, v := range msg.ToolCall.Arguments {
				args[k] = v
			}
			out = append(out, api.Message{
				Role: "assistant",
				ToolCalls: []api.ToolCall{{
					Function: api.ToolCallFunction{
						Name:      msg.ToolCall.Name,
						Arguments: args,
					},
				}},
			})

		case llm.KindToolResult:
			if msg.ToolResult == nil {
				continue
			}
			out = append(out, api.Message{
				Role:    "tool",
				Content: msg.ToolResult.ResultJSON(),
			})
		}
	}

	return out
}

// Deserialize converts an Ollama response message to canonical messages.
// Tool calls receive synthetic identifiers derived from the tool name and
// position, recorded in the side-table for later result pairing.
func Deserialize(msg api.Message, calls *llm.CallTable) []llm.Message {
	var out []llm.Message

	if msg.Content != "" {
		out = append(out, llm.NewTextMessage(llm.RoleAssistant, msg.Content))
	}

	for i, toolCall := range msg.ToolCalls {
		args := make(map[string]any, len(toolCall.Function.Arguments))
		for k, v := range toolCall.Function.Arguments {
			args[k] = v
		}
		id := fmt.Sprintf("call_%s_%d", toolCall.Function.Name, calls.Len()+i)
		calls.Record(id, toolCall.Function.Name)
		out = append(out, llm.NewToolCallMessage(id, toolCall.Function.Name, args))
	}

	return out
}

// TranslateTool renders a canonical tool spec into the Ollama tool shape.
func TranslateTool(spec llm.ToolSpec) api.Tool {
	node := schema.Translate(spec.Parameters, schema.DialectOllama)

	fn := api.ToolFunction{
		Name:        spec.Name,
		Description: spec.Description,
	}
	fn.Parameters.Type = "object"
	if required, ok := node["required"].([]string); ok {
		fn.Parameters.Required = required
	}
	fn.Parameters.Properties = toToolProperties(node)

	return api.Tool{Type: "function", Function: fn}
}

// TranslateTools converts all tool specs for a request.
func TranslateTools(specs []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		result = append(result, TranslateTool(spec))
	}
	return result
}

func toToolProperties(node map[string]any) map[string]api.ToolProperty {
	result := make(map[string]api.ToolProperty)
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return result
	}
	for name, prop := range props {
		propMap, ok := prop.(map[string]any)
		if !ok {
			result[name] = api.ToolProperty{Type: api.PropertyType{"string"}}
			continue
		}
		result[name] = toToolProperty(propMap)
	}
	return result
}

func toToolProperty(propMap map[string]any) api.ToolProperty {
	prop := api.ToolProperty{Type: api.PropertyType{"string"}}
	if typeName, ok := propMap["type"].(string); ok {
		prop.Type = api.PropertyType{typeName}
	}
	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := propMap["items"].(map[string]any); ok {
		itemProp := toToolProperty(items)
		prop.Items = itemProp
	}
	return prop
}

// CoerceArguments validates required parameters and coerces argument
// values to the types the tool's schema declares. Local models frequently
// return numbers as strings or booleans as "true"/"false"; the client
// runs this over tool calls before they reach tool execution.
func CoerceArguments(toolName string, args map[string]any, params *schema.Type) (map[string]any, error) {
	node := schema.Translate(params, schema.DialectOllama)

	if required, ok := node["required"].([]string); ok {
		for _, name := range required {
			val, exists := args[name]
			if !exists {
				provided := make([]string, 0, len(args))
				for k := range args {
					provided = append(provided, k)
				}
				return nil, fmt.Errorf("missing required parameter %q for tool %q (provided: %v)", name, toolName, provided)
			}
			if isEmptyValue(val) {
				return nil, fmt.Errorf("required parameter %q for tool %q cannot be empty", name, toolName)
			}
		}
	}

	props, _ := node["properties"].(map[string]any)
	result := make(map[string]any, len(args))
	for k, v := range args {
		propMap, ok := props[k].(map[string]any)
		if !ok {
			result[k] = v
			continue
		}
		typeName, _ := propMap["type"].(string)
		converted, err := coerceValue(v, typeName, k)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", toolName, err)
		}
		result[k] = converted
	}
	return result, nil
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func coerceValue(v any, targetType, paramName string) (any, error) {
	switch targetType {
	case "integer":
		return coerceInteger(v, paramName)
	case "number":
		return coerceNumber(v, paramName)
	case "boolean":
		return coerceBoolean(v, paramName)
	case "string":
		return coerceString(v), nil
	default:
		return v, nil
	}
}

func coerceInteger(v any, paramName string) (any, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err != nil {
			return nil, fmt.Errorf("parameter %q: cannot convert %q to integer", paramName, val)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("parameter %q: cannot convert %T to integer", paramName, v)
	}
}

func coerceNumber(v any, paramName string) (any, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(val, "%f", &f); err != nil {
			return nil, fmt.Errorf("parameter %q: cannot convert %q to number", paramName, val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("parameter %q: cannot convert %T to number", paramName, v)
	}
}

func coerceBoolean(v any, paramName string) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return nil, fmt.Errorf("parameter %q: cannot convert %q to boolean", paramName, val)
		}
	case int:
		return val != 0, nil
	default:
		return nil, fmt.Errorf("parameter %q: cannot convert %T to boolean", paramName, v)
	}
}

func coerceString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
