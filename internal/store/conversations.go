// internal/store/conversations.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

const maxTitleRunes = 80

// Conversations is owner-scoped: every statement filters on user_id, so a
// caller can never read or modify another user's rows.
type Conversations struct {
	db  *sql.DB
	now func() time.Time
}

func NewConversations(db *sql.DB) *Conversations {
	return &Conversations{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Conversations) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, provider, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []models.ConversationSummary{}
	for rows.Next() {
		var c models.ConversationSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.Provider, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Conversations) Get(ctx context.Context, userID, id string) (*models.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var (
		c   models.Conversation
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, messages, provider, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &raw, &c.Provider, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal(raw, &c.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &c, nil
}

// Create stores c for c.UserID, filling id, title and updated_at when empty.
func (s *Conversations) Create(ctx context.Context, c *models.Conversation) error {
	if c.UserID == "" {
		return fmt.Errorf("create conversation: user id required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = TitleFor(c.Messages)
	}
	c.UpdatedAt = s.now()

	raw, err := marshalMessages(c.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, messages, provider, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Title, raw, c.Provider, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// Update replaces the title, messages and provider of a conversation owned by userID.
func (s *Conversations) Update(ctx context.Context, userID string, c *models.Conversation) error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return ErrNotFound
	}
	if c.Title == "" {
		c.Title = TitleFor(c.Messages)
	}
	c.UserID = userID
	c.UpdatedAt = s.now()

	raw, err := marshalMessages(c.Messages)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET title = $1, messages = $2, provider = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6`,
		c.Title, raw, c.Provider, c.UpdatedAt, c.ID, userID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return requireOneRow(res)
}

func (s *Conversations) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireOneRow(res)
}

// DeleteAll clears the caller's history and reports how many rows went.
func (s *Conversations) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete conversations: %w", err)
	}
	return res.RowsAffected()
}

// TitleFor derives a title from the first user message.
func TitleFor(msgs []models.Message) string {
	for _, m := range msgs {
		if m.Role != models.RoleUser {
			continue
		}
		t := strings.Join(strings.Fields(m.Content), " ")
		if t == "" {
			continue
		}
		r := []rune(t)
		if len(r) > maxTitleRunes {
			return strings.TrimSpace(string(r[:maxTitleRunes])) + "…"
		}
		return t
	}
	return "New chat"
}

func marshalMessages(msgs []models.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return raw, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
