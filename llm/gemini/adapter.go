// Package gemini converts between the canonical message model and the
// Gemini API. This wire format carries no tool call identifiers: results
// pair to calls by adjacency, so the adapter leans on the call-id
// side-table and synthesizes fresh identifiers on deserialization.
package gemini

import (
	"encoding/base64"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/schema"
)

// SerializedConversation is the Gemini-shaped form of one conversation:
// system text in the dedicated instruction slot, everything else as
// alternating user/model content entries.
type SerializedConversation struct {
	SystemInstruction string
	History           []*genai.Content
}

// Serialize converts a canonical conversation to Gemini content. Tool
// calls are recorded in the side-table on the way out so their results
// can be relabeled with the function name, which is the only pairing key
// this wire format understands.
func Serialize(conv llm.Conversation, calls *llm.CallTable) SerializedConversation {
	var out SerializedConversation

	resultIndex := 0
	for _, msg := range conv {
		switch msg.Kind {
		case llm.KindSystem:
			if out.SystemInstruction != "" {
				out.SystemInstruction += "\n"
			}
			out.SystemInstruction += msg.Text

		case llm.KindText:
			if msg.Role == llm.RoleAssistant {
				out.History = append(out.History, &genai.Content{
					Role:  "model",
					Parts: []genai.Part{genai.Text(msg.Text)},
				})
			} else {
				out.History = append(out.History, genai.NewUserContent(genai.Text(msg.Text)))
			}

		case llm.KindImage, llm.KindAudio, llm.KindVideo:
			var parts []genai.Part
			for _, part := range msg.Parts {
				if part.Data == "" {
					continue
				}
				raw, err := base64.StdEncoding.DecodeString(part.Data)
				if err != nil {
					continue
				}
				parts = append(parts, genai.Blob{MIMEType: part.MIMEType, Data: raw})
			}
			if len(parts) > 0 {
				out.History = append(out.History, genai.NewUserContent(parts...))
			}

		case llm.KindToolCall:
			if msg.ToolCall == nil {
				continue
			}
			calls.Record(msg.ToolCall.ID, msg.ToolCall.Name)
			out.History = append(out.History, &genai.Content{
				Role: "model",
				Parts: []genai.Part{genai.FunctionCall{
					Name: msg.ToolCall.Name,
					Args: msg.ToolCall.Arguments,
				}},
			})

		case llm.KindToolResult:
			if msg.ToolResult == nil {
				continue
			}
			name := msg.ToolResult.Name
			if name == "" {
				name, _ = calls.Name(msg.ToolResult.ID)
			}
			if name == "" {
				// Result turns stripped of both name and id are matched
				// back to calls by position in the conversation.
				if _, n, ok := calls.Resolve(resultIndex); ok {
					name = n
				}
			}
			resultIndex++
			out.History = append(out.History, genai.NewUserContent(genai.FunctionResponse{
				Name:     name,
				Response: resultAsMap(msg.ToolResult.Result),
			}))
		}
	}

	return out
}

// Deserialize converts a response candidate to canonical messages. Every
// function call receives a fresh synthetic identifier, recorded in the
// side-table so later result turns can be paired back up.
func Deserialize(candidate *genai.Candidate, calls *llm.CallTable) []llm.Message {
	var out []llm.Message
	if candidate == nil || candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out = append(out, llm.NewTextMessage(llm.RoleAssistant, string(p)))
		case genai.FunctionCall:
			id := "call_" + uuid.NewString()
			calls.Record(id, p.Name)
			args := make(map[string]any, len(p.Args))
			for k, v := range p.Args {
				args[k] = v
			}
			out = append(out, llm.NewToolCallMessage(id, p.Name, args))
		}
		// Other part types are dropped; the caller logs the anomaly.
	}
	return out
}

// TranslateTool renders a canonical tool spec into a Gemini function
// declaration.
func TranslateTool(spec llm.ToolSpec) *genai.Tool {
	node := schema.Translate(spec.Parameters, schema.DialectGemini)
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toGeminiSchema(node),
		}},
	}
}

// TranslateTools converts all tool specs for a request.
func TranslateTools(specs []llm.ToolSpec) []*genai.Tool {
	result := make([]*genai.Tool, 0, len(specs))
	for _, spec := range specs {
		result = append(result, TranslateTool(spec))
	}
	return result
}

// toGeminiSchema converts a translated schema node into the typed
// genai.Schema structure.
func toGeminiSchema(node map[string]any) *genai.Schema {
	if node == nil {
		return nil
	}

	out := &genai.Schema{}
	if desc, ok := node["description"].(string); ok {
		out.Description = desc
	}

	typeName, _ := node["type"].(string)
	switch typeName {
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
		if items, ok := node["items"].(map[string]any); ok {
			out.Items = toGeminiSchema(items)
		}
	case "object":
		out.Type = genai.TypeObject
		if props, ok := node["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, prop := range props {
				if propMap, ok := prop.(map[string]any); ok {
					out.Properties[name] = toGeminiSchema(propMap)
				}
			}
		}
		if required, ok := node["required"].([]string); ok {
			out.Required = required
		}
	default:
		out.Type = genai.TypeString
	}

	if enum, ok := node["enum"].([]any); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	return out
}

// resultAsMap shapes a tool result payload as the map the wire format
// requires for function responses.
func resultAsMap(result any) map[string]any {
	if m, ok := result.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": result}
}
