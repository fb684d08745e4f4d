package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/internal/session"
	"github.com/rajiknows/rig/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024 * 1024
)

// Frame types.
const (
	FramePrompt = "prompt"
	FrameEvent  = "event"
	FrameResult = "result"
	FrameError  = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientFrame is sent by the client. Only "prompt" frames are accepted.
type ClientFrame struct {
	Type           string `json:"type"`
	Prompt         string `json:"prompt"`
	Depth          *int   `json:"depth,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ServerFrame is sent to the client: zero or more "event" frames per
// prompt, followed by exactly one "result" or "error" frame.
type ServerFrame struct {
	Type           string       `json:"type"`
	Event          *agent.Event `json:"event,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Output         string       `json:"output,omitempty"`
	Code           string       `json:"code,omitempty"`
	Message        string       `json:"message,omitempty"`
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(frame ServerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket runs prompts sent over a websocket connection one at a
// time, streaming agent events while each prompt runs.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	c := &wsConn{conn: conn}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.keepAlive(ctx, c)

	logger.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if c.write(ServerFrame{Type: FrameError, Code: ErrCodeInvalidRequest, Message: "invalid JSON frame"}) != nil {
				return
			}
			continue
		}
		if err := s.runFrame(ctx, c, frame); err != nil {
			logger.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
		// Pongs are not processed while a prompt runs.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *Server) keepAlive(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// runFrame executes one client frame. It returns an error only when the
// connection can no longer be written to.
func (s *Server) runFrame(ctx context.Context, c *wsConn, frame ClientFrame) error {
	switch {
	case frame.Type != FramePrompt:
		return c.write(ServerFrame{Type: FrameError, Code: ErrCodeInvalidRequest, Message: "unknown frame type: " + frame.Type})
	case strings.TrimSpace(frame.Prompt) == "":
		return c.write(ServerFrame{Type: FrameError, Code: ErrCodeInvalidRequest, Message: "prompt is required"})
	case frame.Depth != nil && *frame.Depth < 0:
		return c.write(ServerFrame{Type: FrameError, Code: ErrCodeInvalidRequest, Message: "depth must be >= 0"})
	}

	emitter := agent.NewEventEmitter(256)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range emitter.Events() {
			ev := ev
			if err := c.write(ServerFrame{Type: FrameEvent, Event: &ev}); err != nil {
				// Drain so the run is not affected by a dead client.
				for range emitter.Events() {
				}
				return
			}
		}
	}()

	runCtx, cancel := s.promptContext(ctx)
	res, err := s.deps.Runner.Run(runCtx, session.Input{
		Prompt:         frame.Prompt,
		ConversationID: frame.ConversationID,
		Depth:          frame.Depth,
		Emitter:        emitter,
	})
	cancel()
	emitter.Close()
	<-forwarded

	if err != nil {
		_, code := classify(err)
		return c.write(ServerFrame{
			Type:           FrameError,
			ConversationID: res.ConversationID,
			Code:           code,
			Message:        err.Error(),
		})
	}
	return c.write(ServerFrame{Type: FrameResult, ConversationID: res.ConversationID, Output: res.Output})
}
