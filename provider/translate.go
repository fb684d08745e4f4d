package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"

	"github.com/rajiknows/rig/completion"
)

const toolCallInstructions = `You can call tools. To call one or more tools, reply with a JSON object of the form
{"tool_calls":[{"name":"<tool name>","arguments":{...}}]}
and nothing else. Tool outputs come back as [Tool Result] lines. When you have the final answer, reply with plain text.`

var (
	toolCallsObject = regexp.MustCompile(`\{\s*"tool_calls"\s*:`)
	toolCallsArray  = regexp.MustCompile(`\[\s*\{\s*"name"\s*:`)
)

// translateRequest renders a completion.Request into a single gollm prompt.
// gollm has no multi-message input, so history becomes a labelled transcript.
func translateRequest(req completion.Request) *gollm.Prompt {
	system, text := renderTranscript(req)

	var opts []gollm.PromptOption
	if system != "" {
		opts = append(opts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		opts = append(opts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, gollm.WithTools(tools), gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(text, opts...)
}

// renderTranscript returns the system prompt and the user-facing prompt text.
// A lone user text prompt with no history or documents is passed through as is.
func renderTranscript(req completion.Request) (string, string) {
	var system []string
	if p := strings.TrimSpace(req.Preamble); p != "" {
		system = append(system, p)
	}
	if len(req.Tools) > 0 {
		system = append(system, toolCallInstructions)
	}

	msgs := req.Messages()
	if len(msgs) == 1 && len(req.Documents) == 0 && msgs[0].Role == completion.RoleUser && len(msgs[0].ToolResults()) == 0 {
		return strings.Join(system, "\n\n"), msgs[0].Text()
	}

	var lines []string
	if len(req.Documents) > 0 {
		docs := make([]string, len(req.Documents))
		for i, d := range req.Documents {
			docs[i] = d.String()
		}
		lines = append(lines, "<attachments>\n"+strings.Join(docs, "\n")+"\n</attachments>")
	}

	for _, msg := range msgs {
		switch msg.Role {
		case completion.RoleUser:
			if msg.User == nil {
				continue
			}
			for _, c := range msg.User.Content {
				switch {
				case c.Kind == completion.ContentText && c.Text != nil:
					lines = append(lines, "[User]: "+c.Text.Text)
				case c.Kind == completion.ContentToolResult && c.ToolResult != nil:
					lines = append(lines, "[Tool Result id="+c.ToolResult.ID+"]: "+c.ToolResult.Output())
				}
			}
		case completion.RoleAssistant:
			if msg.Assistant == nil {
				continue
			}
			for _, c := range msg.Assistant.Content {
				switch {
				case c.Kind == completion.ContentText && c.Text != nil && c.Text.Text != "":
					lines = append(lines, "[Assistant]: "+c.Text.Text)
				case c.Kind == completion.ContentToolCall && c.ToolCall != nil:
					lines = append(lines, "[Tool Call id="+c.ToolCall.ID+"]: "+c.ToolCall.Function.Name+" "+c.ToolCall.ArgumentsString())
				}
			}
		}
	}

	return strings.Join(system, "\n\n"), strings.Join(lines, "\n")
}

type rawToolCall struct {
	ID        string          `json:"id"`
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// parseToolCalls extracts tool calls embedded in generated text. It returns
// the calls and whatever text surrounds the JSON.
func parseToolCalls(text string) ([]completion.ToolCall, string) {
	var (
		raws       []rawToolCall
		start, end = -1, -1
	)

	if loc := toolCallsObject.FindStringIndex(text); loc != nil {
		var env struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		dec := json.NewDecoder(strings.NewReader(text[loc[0]:]))
		if err := dec.Decode(&env); err == nil {
			raws, start, end = env.ToolCalls, loc[0], loc[0]+int(dec.InputOffset())
		}
	}
	if start == -1 {
		if loc := toolCallsArray.FindStringIndex(text); loc != nil {
			dec := json.NewDecoder(strings.NewReader(text[loc[0]:]))
			if err := dec.Decode(&raws); err == nil {
				start, end = loc[0], loc[0]+int(dec.InputOffset())
			}
		}
	}
	if start == -1 {
		return nil, text
	}

	var calls []completion.ToolCall
	for _, rc := range raws {
		name, args := rc.Name, rc.Arguments
		if rc.Function != nil {
			if name == "" {
				name = rc.Function.Name
			}
			if len(args) == 0 {
				args = rc.Function.Arguments
			}
		}
		if name == "" {
			continue
		}
		id := rc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		calls = append(calls, completion.ToolCall{
			ID:       id,
			CallID:   rc.CallID,
			Function: completion.ToolFunction{Name: name, Arguments: normalizeArguments(args)},
		})
	}
	if len(calls) == 0 {
		return nil, text
	}

	before := strings.TrimSpace(text[:start])
	before = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(before, "```json"), "```"))
	after := strings.TrimSpace(text[end:])
	after = strings.TrimSpace(strings.TrimPrefix(after, "```"))

	rest := before
	if after != "" {
		if rest != "" {
			rest += "\n"
		}
		rest += after
	}
	return calls, rest
}

// normalizeArguments accepts arguments as a JSON object or as a string holding
// one, the way OpenAI encodes them.
func normalizeArguments(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return json.RawMessage("{}")
		}
		if json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
	}
	return json.RawMessage(trimmed)
}

func buildResponse(provider, model string, req completion.Request, text string) *completion.Response {
	calls, rest := parseToolCalls(text)

	var choice []completion.AssistantContent
	if rest != "" {
		choice = append(choice, completion.AssistantTextPart(rest))
	}
	for _, tc := range calls {
		choice = append(choice, completion.ToolCallPart(tc.ID, tc.CallID, tc.Function.Name, tc.Function.Arguments))
	}
	if len(choice) == 0 {
		choice = []completion.AssistantContent{completion.AssistantTextPart(text)}
	}

	input := estimateTokens(req)
	output := len(text) / 4
	return &completion.Response{
		ID:     "resp_" + uuid.New().String()[:8],
		Model:  model,
		Choice: choice,
		Usage: completion.Usage{
			// gollm does not expose usage; estimate from text length.
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		},
		Raw: map[string]interface{}{"provider": provider, "text": text},
	}
}

// translateError classifies a gollm error by its message. Messages that
// name an HTTP status go through completion.ErrorFromStatusCode.
func translateError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := completion.SDKError{Message: msg, Cause: err}

	var status int
	switch {
	case strings.Contains(lower, "context canceled"):
		return err
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid key"):
		status = 401
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		status = 403
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		status = 404
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		status = 429
	case strings.Contains(lower, "quota"):
		return &completion.QuotaExceededError{ProviderError: completion.ProviderError{SDKError: base, Provider: provider}}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		status = 413
	case strings.Contains(lower, "502"):
		status = 502
	case strings.Contains(lower, "503"):
		status = 503
	case strings.Contains(lower, "504"):
		status = 504
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		status = 500
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		status = 408
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &completion.NetworkError{SDKError: base}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &completion.ContentFilterError{ProviderError: completion.ProviderError{SDKError: base, Provider: provider}}
	case strings.Contains(lower, "400") || strings.Contains(lower, "422") || strings.Contains(lower, "bad request") || strings.Contains(lower, "invalid request"):
		status = 400
	}
	return completion.WithCause(completion.ErrorFromStatusCode(status, msg, provider, "", nil, nil), err)
}

func estimateTokens(req completion.Request) int {
	total := len(req.Preamble) / 4
	for _, msg := range req.Messages() {
		total += len(msg.Text()) / 4
		for _, r := range msg.ToolResults() {
			total += len(r.Output()) / 4
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
