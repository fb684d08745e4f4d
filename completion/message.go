package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind is the discriminator tag for content blocks.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
	ContentReasoning  ContentKind = "reasoning"
)

// Text is a plain text block.
type Text struct {
	Text string `json:"text"`
}

// ToolFunction names the function a tool call targets and carries its
// JSON-encoded arguments.
type ToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCall is a model-initiated tool invocation. CallID is a secondary
// identifier some providers use to group calls; it is empty when unused.
type ToolCall struct {
	ID       string       `json:"id"`
	CallID   string       `json:"call_id,omitempty"`
	Function ToolFunction `json:"function"`
}

// ArgumentsString returns the arguments as a JSON string, "{}" when absent.
func (tc ToolCall) ArgumentsString() string {
	if len(tc.Function.Arguments) == 0 {
		return "{}"
	}
	return string(tc.Function.Arguments)
}

// Reasoning carries model reasoning that is neither answer text nor a tool call.
type Reasoning struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// ToolResult holds the output of one tool call, keyed by the call's ID and,
// when present, its CallID.
type ToolResult struct {
	ID      string `json:"id"`
	CallID  string `json:"call_id,omitempty"`
	Content []Text `json:"content"`
}

// Output joins the text content of the result.
func (r ToolResult) Output() string {
	parts := make([]string, len(r.Content))
	for i, c := range r.Content {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

// AssistantContent is a tagged union for one block of an assistant message.
type AssistantContent struct {
	Kind      ContentKind `json:"kind"`
	Text      *Text       `json:"text,omitempty"`
	ToolCall  *ToolCall   `json:"tool_call,omitempty"`
	Reasoning *Reasoning  `json:"reasoning,omitempty"`
}

// UserContent is a tagged union for one block of a user message.
type UserContent struct {
	Kind       ContentKind `json:"kind"`
	Text       *Text       `json:"text,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// AssistantTextPart creates a text block for an assistant message.
func AssistantTextPart(text string) AssistantContent {
	return AssistantContent{Kind: ContentText, Text: &Text{Text: text}}
}

// ToolCallPart creates a tool call block. callID may be empty.
func ToolCallPart(id, callID, name string, args json.RawMessage) AssistantContent {
	return AssistantContent{
		Kind: ContentToolCall,
		ToolCall: &ToolCall{
			ID:       id,
			CallID:   callID,
			Function: ToolFunction{Name: name, Arguments: args},
		},
	}
}

// ReasoningPart creates a reasoning block.
func ReasoningPart(text, signature string) AssistantContent {
	return AssistantContent{Kind: ContentReasoning, Reasoning: &Reasoning{Text: text, Signature: signature}}
}

// UserTextPart creates a text block for a user message.
func UserTextPart(text string) UserContent {
	return UserContent{Kind: ContentText, Text: &Text{Text: text}}
}

// ToolResultPart wraps a tool output as a tool result block. callID may be empty.
func ToolResultPart(id, callID, output string) UserContent {
	return UserContent{
		Kind: ContentToolResult,
		ToolResult: &ToolResult{
			ID:      id,
			CallID:  callID,
			Content: []Text{{Text: output}},
		},
	}
}

// UserMessage holds the content of a user message.
type UserMessage struct {
	Content []UserContent `json:"content"`
}

// AssistantMessage holds the content of an assistant message.
type AssistantMessage struct {
	ID      string             `json:"id,omitempty"`
	Content []AssistantContent `json:"content"`
}

// Message is a single entry in a conversation. Exactly one of User or
// Assistant is set, matching Role.
type Message struct {
	Role      Role              `json:"role"`
	User      *UserMessage      `json:"user,omitempty"`
	Assistant *AssistantMessage `json:"assistant,omitempty"`
}

// NewUserMessage creates a user message from content blocks.
func NewUserMessage(content ...UserContent) Message {
	return Message{Role: RoleUser, User: &UserMessage{Content: content}}
}

// UserText creates a user message holding a single text block.
func UserText(text string) Message {
	return NewUserMessage(UserTextPart(text))
}

// NewAssistantMessage creates an assistant message. id may be empty.
func NewAssistantMessage(id string, content ...AssistantContent) Message {
	return Message{Role: RoleAssistant, Assistant: &AssistantMessage{ID: id, Content: content}}
}

// AssistantText creates an assistant message holding a single text block.
func AssistantText(text string) Message {
	return NewAssistantMessage("", AssistantTextPart(text))
}

// Text returns the text blocks of the message joined by newlines. Tool calls,
// tool results and reasoning are ignored.
func (m Message) Text() string {
	var texts []string
	switch m.Role {
	case RoleUser:
		if m.User != nil {
			for _, c := range m.User.Content {
				if c.Kind == ContentText && c.Text != nil {
					texts = append(texts, c.Text.Text)
				}
			}
		}
	case RoleAssistant:
		if m.Assistant != nil {
			for _, c := range m.Assistant.Content {
				if c.Kind == ContentText && c.Text != nil {
					texts = append(texts, c.Text.Text)
				}
			}
		}
	}
	return strings.Join(texts, "\n")
}

// ToolCalls returns the tool calls of an assistant message in order.
func (m Message) ToolCalls() []ToolCall {
	if m.Role != RoleAssistant || m.Assistant == nil {
		return nil
	}
	var calls []ToolCall
	for _, c := range m.Assistant.Content {
		if c.Kind == ContentToolCall && c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
	}
	return calls
}

// ToolResults returns the tool results of a user message in order.
func (m Message) ToolResults() []ToolResult {
	if m.Role != RoleUser || m.User == nil {
		return nil
	}
	var results []ToolResult
	for _, c := range m.User.Content {
		if c.Kind == ContentToolResult && c.ToolResult != nil {
			results = append(results, *c.ToolResult)
		}
	}
	return results
}

// Len returns the number of content blocks.
func (m Message) Len() int {
	switch m.Role {
	case RoleUser:
		if m.User != nil {
			return len(m.User.Content)
		}
	case RoleAssistant:
		if m.Assistant != nil {
			return len(m.Assistant.Content)
		}
	}
	return 0
}

// Validate checks that the message is well formed: the payload matches the
// role, content is non-empty and every block carries the payload its kind
// names.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser:
		if m.User == nil || m.Assistant != nil {
			return fmt.Errorf("user message must carry only a user payload")
		}
		if len(m.User.Content) == 0 {
			return fmt.Errorf("user message has no content")
		}
		for i, c := range m.User.Content {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("user content %d: %w", i, err)
			}
		}
	case RoleAssistant:
		if m.Assistant == nil || m.User != nil {
			return fmt.Errorf("assistant message must carry only an assistant payload")
		}
		if len(m.Assistant.Content) == 0 {
			return fmt.Errorf("assistant message has no content")
		}
		for i, c := range m.Assistant.Content {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("assistant content %d: %w", i, err)
			}
		}
	default:
		return &UnknownKindError{Kind: string(m.Role)}
	}
	return nil
}

// Validate checks that the block carries the payload its kind names.
func (c AssistantContent) Validate() error {
	switch c.Kind {
	case ContentText:
		if c.Text == nil {
			return fmt.Errorf("text block without text")
		}
	case ContentToolCall:
		if c.ToolCall == nil {
			return fmt.Errorf("tool_call block without tool call")
		}
		if c.ToolCall.Function.Name == "" {
			return fmt.Errorf("tool_call block without function name")
		}
	case ContentReasoning:
		if c.Reasoning == nil {
			return fmt.Errorf("reasoning block without reasoning")
		}
	default:
		return &UnknownKindError{Kind: string(c.Kind)}
	}
	return nil
}

// Validate checks that the block carries the payload its kind names.
func (c UserContent) Validate() error {
	switch c.Kind {
	case ContentText:
		if c.Text == nil {
			return fmt.Errorf("text block without text")
		}
	case ContentToolResult:
		if c.ToolResult == nil {
			return fmt.Errorf("tool_result block without result")
		}
	default:
		return &UnknownKindError{Kind: string(c.Kind)}
	}
	return nil
}

// UnmarshalJSON decodes a message and rejects malformed or unknown variants.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	msg := Message(decoded)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	*m = msg
	return nil
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.User != nil {
		content := make([]UserContent, len(m.User.Content))
		for i, c := range m.User.Content {
			content[i] = c.clone()
		}
		out.User = &UserMessage{Content: content}
	}
	if m.Assistant != nil {
		content := make([]AssistantContent, len(m.Assistant.Content))
		for i, c := range m.Assistant.Content {
			content[i] = c.clone()
		}
		out.Assistant = &AssistantMessage{ID: m.Assistant.ID, Content: content}
	}
	return out
}

func (c AssistantContent) clone() AssistantContent {
	out := AssistantContent{Kind: c.Kind}
	if c.Text != nil {
		t := *c.Text
		out.Text = &t
	}
	if c.ToolCall != nil {
		tc := *c.ToolCall
		tc.Function.Arguments = append(json.RawMessage(nil), c.ToolCall.Function.Arguments...)
		out.ToolCall = &tc
	}
	if c.Reasoning != nil {
		r := *c.Reasoning
		out.Reasoning = &r
	}
	return out
}

func (c UserContent) clone() UserContent {
	out := UserContent{Kind: c.Kind}
	if c.Text != nil {
		t := *c.Text
		out.Text = &t
	}
	if c.ToolResult != nil {
		tr := *c.ToolResult
		tr.Content = append([]Text(nil), c.ToolResult.Content...)
		out.ToolResult = &tr
	}
	return out
}
