package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajiknows/rig/completion"
)

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrHistoryDiverged is returned when a history is shorter than what is
	// already stored for the conversation.
	ErrHistoryDiverged = errors.New("history is shorter than the stored conversation")
)

// Conversation is a stored conversation header.
type Conversation struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Model        string          `json:"model"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	MessageCount int             `json:"message_count"`
}

// CreateConversation creates an empty conversation.
func (s *Store) CreateConversation(ctx context.Context, title, model string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		Model:     model,
		Metadata:  json.RawMessage("{}"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, model, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Title, c.Model, string(c.Metadata), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

const conversationColumns = `c.id, c.title, c.model, c.metadata, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		c    Conversation
		meta string
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Model, &meta, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
		return nil, err
	}
	c.Metadata = json.RawMessage(meta)
	return &c, nil
}

// GetConversation returns the conversation header with its message count.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+conversationColumns+" FROM conversations c WHERE c.id = ?", id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// ListConversations returns conversations, most recently updated first.
// limit <= 0 returns all of them.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	query := "SELECT " + conversationColumns + " FROM conversations c ORDER BY c.updated_at DESC, c.id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetMetadata replaces the conversation's metadata object.
func (s *Store) SetMetadata(ctx context.Context, id string, metadata json.RawMessage) error {
	if !json.Valid(metadata) {
		return fmt.Errorf("set metadata for %s: invalid JSON", id)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET metadata = ?, updated_at = ? WHERE id = ?",
		string(metadata), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set metadata for %s: %w", id, err)
	}
	return requireAffected(res)
}

// LoadHistory reads the stored messages of a conversation in order.
func (s *Store) LoadHistory(ctx context.Context, id string) (*completion.History, error) {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content FROM messages WHERE conversation_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", id, err)
	}
	defer rows.Close()

	var msgs []completion.Message
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg completion.Message
		if err := json.Unmarshal([]byte(content), &msg); err != nil {
			return nil, fmt.Errorf("decode message %d of %s: %w", len(msgs), id, err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return completion.NewHistory(msgs...), nil
}

// SaveHistory appends the messages of h after the first base, which must
// be the number of messages stored when h was loaded. Stored messages are
// never rewritten. If another writer saved in the meantime, or h is shorter
// than base, it returns ErrHistoryDiverged. It returns the number of
// messages appended.
func (s *Store) SaveHistory(ctx context.Context, id string, base int, h *completion.History) (int, error) {
	var appended int
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var stored int
		err := tx.QueryRowContext(ctx,
			"SELECT (SELECT COUNT(*) FROM messages WHERE conversation_id = ?) FROM conversations WHERE id = ?",
			id, id,
		).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if stored != base {
			return fmt.Errorf("%w: loaded %d, stored %d", ErrHistoryDiverged, base, stored)
		}
		if h.Len() < stored {
			return fmt.Errorf("%w: have %d, stored %d", ErrHistoryDiverged, h.Len(), stored)
		}

		now := time.Now().UTC()
		for i, msg := range h.Since(stored) {
			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode message %d: %w", stored+i, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO messages (conversation_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
				id, stored+i, string(msg.Role), string(data), now,
			); err != nil {
				return fmt.Errorf("insert message %d: %w", stored+i, err)
			}
			appended++
		}

		if appended > 0 {
			if _, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", now, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save history %s: %w", id, err)
	}
	return appended, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
