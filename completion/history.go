package completion

import "encoding/json"

// History is an ordered, append-only record of a conversation. It is passed
// by pointer; whoever holds the pointer during a request is its only writer.
type History struct {
	messages []Message
}

// NewHistory creates a history seeded with msgs.
func NewHistory(msgs ...Message) *History {
	h := &History{messages: make([]Message, 0, len(msgs))}
	h.messages = append(h.messages, msgs...)
	return h
}

// Push appends a message.
func (h *History) Push(m Message) {
	h.messages = append(h.messages, m)
}

// Len returns the number of messages.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.messages)
}

// At returns the message at index i.
func (h *History) At(i int) Message {
	return h.messages[i]
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	if h.Len() == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Messages returns a copy of all messages.
func (h *History) Messages() []Message {
	if h == nil {
		return nil
	}
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Context returns a copy of every message except the last one, which is the
// prompt of the turn being issued.
func (h *History) Context() []Message {
	if h.Len() == 0 {
		return nil
	}
	out := make([]Message, len(h.messages)-1)
	copy(out, h.messages[:len(h.messages)-1])
	return out
}

// Since returns a copy of the messages from index n on.
func (h *History) Since(n int) []Message {
	if n >= h.Len() {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]Message, len(h.messages)-n)
	copy(out, h.messages[n:])
	return out
}

// Snapshot returns an independent deep copy.
func (h *History) Snapshot() *History {
	out := &History{messages: make([]Message, h.Len())}
	for i := range out.messages {
		out.messages[i] = h.messages[i].Clone()
	}
	return out
}

// MarshalJSON encodes the history as a JSON array of messages.
func (h *History) MarshalJSON() ([]byte, error) {
	if h == nil || h.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.messages)
}

// UnmarshalJSON decodes a JSON array of messages, validating each one.
func (h *History) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	h.messages = msgs
	return nil
}
