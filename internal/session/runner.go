// Package session runs prompts against stored conversations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/storage"
)

const titleLimit = 60

// Metadata is recorded on every conversation the Runner creates.
type Metadata struct {
	Agent    string `json:"agent"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type modelIdentity interface {
	Provider() string
	Model() string
}

// Input is a single prompt against an optional stored conversation.
type Input struct {
	Prompt         string
	ConversationID string // empty starts a new conversation
	Depth          *int   // nil uses the agent default
	Emitter        *agent.EventEmitter
	// Ephemeral skips the store entirely.
	Ephemeral bool
}

// Result is the outcome of Run. ConversationID is set whenever the
// conversation was created or loaded, even if Run returned an error.
type Result struct {
	ConversationID string
	Output         string
	Appended       int
}

// Runner ties an agent to a conversation store.
type Runner struct {
	agent *agent.Agent
	store *storage.Store
}

// NewRunner creates a Runner. store may be nil, in which case every Input
// is treated as ephemeral.
func NewRunner(a *agent.Agent, store *storage.Store) *Runner {
	return &Runner{agent: a, store: store}
}

// Run loads or creates the conversation, sends the prompt and saves the
// history. The history is saved even when the prompt fails so a
// conversation that hit the depth limit can be resumed.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	var res Result
	if strings.TrimSpace(in.Prompt) == "" {
		return res, errors.New("prompt is empty")
	}

	history := completion.NewHistory()
	persist := r.store != nil && !in.Ephemeral
	if persist {
		id, h, err := r.open(ctx, in)
		if err != nil {
			return res, err
		}
		res.ConversationID = id
		history = h
	}
	stored := history.Len()

	req := r.agent.Prompt(in.Prompt).WithHistory(history)
	if in.Depth != nil {
		req = req.MultiTurn(*in.Depth)
	}
	if in.Emitter != nil {
		req = req.WithEmitter(in.Emitter)
	}

	out, sendErr := req.Send(ctx)
	res.Output = out

	if persist && history.Len() > stored {
		// The request context may already be cancelled; saving what was
		// appended still matters.
		n, err := r.store.SaveHistory(context.WithoutCancel(ctx), res.ConversationID, stored, history)
		if err != nil {
			logger.Error().Err(err).Str("conversation_id", res.ConversationID).Msg("failed to save history")
			if sendErr == nil {
				return res, fmt.Errorf("save history: %w", err)
			}
		}
		res.Appended = n
	}
	return res, sendErr
}

func (r *Runner) metadata() Metadata {
	meta := Metadata{Agent: r.agent.Name()}
	if id, ok := r.agent.Model().(modelIdentity); ok {
		meta.Provider = id.Provider()
		meta.Model = id.Model()
	}
	return meta
}

func (r *Runner) open(ctx context.Context, in Input) (string, *completion.History, error) {
	if in.ConversationID != "" {
		h, err := r.store.LoadHistory(ctx, in.ConversationID)
		if err != nil {
			return "", nil, err
		}
		return in.ConversationID, h, nil
	}
	meta := r.metadata()
	conv, err := r.store.CreateConversation(ctx, Title(in.Prompt), meta.Model)
	if err != nil {
		return "", nil, err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", nil, err
	}
	if err := r.store.SetMetadata(ctx, conv.ID, data); err != nil {
		return "", nil, err
	}
	logger.Debug().Str("conversation_id", conv.ID).Msg("conversation created")
	return conv.ID, completion.NewHistory(), nil
}

// Title derives a conversation title from the first line of prompt.
func Title(prompt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= titleLimit {
		return line
	}
	runes := []rune(line)
	return string(runes[:titleLimit-3]) + "..."
}
