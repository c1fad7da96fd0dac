package llm

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind identifies which variant of Message a value holds.
type MessageKind string

const (
	KindSystem     MessageKind = "system"
	KindText       MessageKind = "text"
	KindImage      MessageKind = "image"
	KindAudio      MessageKind = "audio"
	KindVideo      MessageKind = "video"
	KindToolCall   MessageKind = "tool_call"
	KindToolResult MessageKind = "tool_result"
)

// Message represents a single conversation turn in provider-neutral form.
// It is a closed set of variants tagged by Kind; only the payload fields
// for that kind are populated. Every provider wire message maps to at
// least one of these variants and back.
type Message struct {
	Kind MessageKind
	Role Role

	// Text payload for system and text messages.
	Text string

	// ContinuationToken is an opaque provider token that must be echoed
	// back on the next request (e.g. reasoning-state signatures). None of
	// the current adapters' wire formats carry such a token; the field is
	// reserved so conversations survive round-trips once a provider
	// requires it.
	ContinuationToken string

	// Parts holds media payloads for image, audio, and video messages.
	Parts []MediaPart

	ToolCall   *ToolCallBlock
	ToolResult *ToolResultBlock
}

// MediaPart is one media attachment within an image/audio/video message.
// Either URL or Data (base64-encoded bytes) is set.
type MediaPart struct {
	URL      string
	Data     string
	MIMEType string
	Detail   string // provider hint, e.g. "low"/"high" for image detail
}

// ToolCallBlock represents a tool invocation requested by the assistant.
type ToolCallBlock struct {
	ID        string
	Name      string
	Arguments map[string]any

	// ContinuationToken mirrors Message.ContinuationToken for call turns;
	// no current adapter transmits it.
	ContinuationToken string
}

// ToolResultBlock represents the result of a tool invocation, tagged with
// the identifier of the originating call.
type ToolResultBlock struct {
	ID     string
	Name   string
	Result any
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return Message{Kind: KindSystem, Role: RoleSystem, Text: text}
}

// NewTextMessage creates a text message with the given role.
func NewTextMessage(role Role, text string) Message {
	return Message{Kind: KindText, Role: role, Text: text}
}

// NewImageMessage creates a user message carrying one or more image parts.
func NewImageMessage(parts ...MediaPart) Message {
	return Message{Kind: KindImage, Role: RoleUser, Parts: parts}
}

// NewAudioMessage creates a user message carrying one or more audio parts.
func NewAudioMessage(parts ...MediaPart) Message {
	return Message{Kind: KindAudio, Role: RoleUser, Parts: parts}
}

// NewVideoMessage creates a user message carrying one or more video parts.
func NewVideoMessage(parts ...MediaPart) Message {
	return Message{Kind: KindVideo, Role: RoleUser, Parts: parts}
}

// NewToolCallMessage creates an assistant message requesting a tool invocation.
func NewToolCallMessage(id, name string, args map[string]any) Message {
	return Message{
		Kind: KindToolCall,
		Role: RoleAssistant,
		ToolCall: &ToolCallBlock{
			ID:        id,
			Name:      name,
			Arguments: args,
		},
	}
}

// NewToolResultMessage creates a message carrying the result of a prior tool call.
func NewToolResultMessage(id, name string, result any) Message {
	return Message{
		Kind: KindToolResult,
		Role: RoleUser,
		ToolResult: &ToolResultBlock{
			ID:     id,
			Name:   name,
			Result: result,
		},
	}
}

// ResultJSON returns the tool result payload serialized to JSON. Values
// that fail to marshal are rendered with %v so a tool result never
// silently disappears from the conversation.
func (b *ToolResultBlock) ResultJSON() string {
	if b.Result == nil {
		return "null"
	}
	if s, ok := b.Result.(string); ok {
		return s
	}
	data, err := json.Marshal(b.Result)
	if err != nil {
		return fmt.Sprintf("%v", b.Result)
	}
	return string(data)
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Conversation is an ordered, append-only sequence of messages. Insertion
// order is the turn order and is semantically load-bearing: some providers
// pair tool results to tool calls by adjacency rather than by identifier.
type Conversation []Message

// Append returns the conversation with the given messages appended.
func (c Conversation) Append(msgs ...Message) Conversation {
	return append(c, msgs...)
}

// Validate checks that every tool result references a tool call that
// appears earlier in the conversation.
func (c Conversation) Validate() error {
	calls := make(map[string]bool)
	for i, msg := range c {
		switch msg.Kind {
		case KindToolCall:
			if msg.ToolCall == nil {
				return fmt.Errorf("message %d: tool call message without payload", i)
			}
			calls[msg.ToolCall.ID] = true
		case KindToolResult:
			if msg.ToolResult == nil {
				return fmt.Errorf("message %d: tool result message without payload", i)
			}
			if !calls[msg.ToolResult.ID] {
				return fmt.Errorf("message %d: tool result references unknown call %q", i, msg.ToolResult.ID)
			}
		}
	}
	return nil
}

// ApproxChars returns a coarse character count for the conversation,
// used by rate-limit pacing to estimate request cost.
func ApproxChars(c Conversation) int {
	total := 0
	for _, msg := range c {
		total += len(msg.Text)
		for _, part := range msg.Parts {
			total += len(part.Data) + len(part.URL)
		}
		if msg.ToolCall != nil {
			total += len(msg.ToolCall.Name)
			for k, v := range msg.ToolCall.Arguments {
				total += len(k) + len(fmt.Sprintf("%v", v))
			}
		}
		if msg.ToolResult != nil {
			total += len(msg.ToolResult.ResultJSON())
		}
	}
	return total
}

// LastText returns the text of the trailing message if it is a text
// message, or the empty string otherwise.
func (c Conversation) LastText() string {
	if len(c) == 0 {
		return ""
	}
	if last := c[len(c)-1]; last.Kind == KindText {
		return last.Text
	}
	return ""
}
