package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a chat thread owned by a user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn of a conversation. Messages are append-only and
// never mutated; their creation-time ordering is the only contract for
// reconstructing model history.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversation inserts a conversation for the user.
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return c, nil
}

// GetConversation returns the conversation if it exists and belongs to
// the user.
func (s *Store) GetConversation(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?
	`, conversationID, userID)

	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// UpdateConversationTitle renames the user's conversation.
func (s *Store) UpdateConversationTitle(ctx context.Context, conversationID, userID, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, title, time.Now().UTC(), conversationID, userID)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the user's conversation and all its
// messages in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM messages WHERE conversation_id IN
			(SELECT id FROM conversations WHERE id = ? AND user_id = ?)
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM conversations WHERE id = ? AND user_id = ?
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// AppendMessage adds a message to a conversation and returns its id.
// Message ids are UUIDv7 so that equal-timestamp rows still sort in
// insertion order.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (string, error) {
	now := time.Now().UTC()
	msgID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msgID.String(), conversationID, role, content, now)
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now, conversationID)
	if err != nil {
		return "", fmt.Errorf("touch conversation: %w", err)
	}

	return msgID.String(), nil
}

// ListMessages returns every message of a conversation in creation
// order, ties broken by message id.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
