package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLTranscriptStore persists conversations and messages to PostgreSQL for
// long-term history. A nil store is a no-op so transcript persistence can
// be disabled without branching at every call site.
type SQLTranscriptStore struct {
	db *sql.DB
}

func NewSQLTranscriptStore(db *sql.DB) *SQLTranscriptStore {
	if db == nil {
		return nil
	}
	return &SQLTranscriptStore{db: db}
}

// EnsureConversation creates the conversation row if it does not exist and
// bumps updated_at when it does.
func (s *SQLTranscriptStore) EnsureConversation(ctx context.Context, conversationID string, channel string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("conversation: conversation id is required")
	}
	if channel == "" {
		channel = string(ChannelAPI)
	}

	var existingID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE conversation_id = $1`,
		conversationID,
	).Scan(&existingID)

	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
			time.Now(), existingID,
		)
		return err
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("conversation: failed to check existing: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, conversation_id, channel,
			message_count, user_message_count, assistant_message_count,
			started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), conversationID, channel, 0, 0, 0, now, now, now)

	if err != nil {
		// Another process may have created it between the check and the insert.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.EnsureConversation(ctx, conversationID, channel)
		}
		return fmt.Errorf("conversation: failed to create: %w", err)
	}
	return nil
}

// AppendMessage persists a message and updates conversation counters.
func (s *SQLTranscriptStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (
			id, conversation_id, role, content, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, uuid.New(), conversationID, role, content, now)
	if err != nil {
		return fmt.Errorf("conversation: failed to insert message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation: failed to read insert result: %w", err)
	}
	if rowsAffected == 0 {
		return nil
	}

	counterColumn := "message_count"
	switch role {
	case ChatRoleUser:
		counterColumn = "user_message_count"
	case ChatRoleAssistant:
		counterColumn = "assistant_message_count"
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE conversations SET
			message_count = message_count + 1,
			%s = %s + 1,
			last_message_at = $1,
			updated_at = $1
		WHERE conversation_id = $2
	`, counterColumn, counterColumn), now, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: failed to update counters: %w", err)
	}
	return nil
}

// GetMessages retrieves the full transcript of a conversation, oldest first.
func (s *SQLTranscriptStore) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// EndConversation marks a conversation as ended.
func (s *SQLTranscriptStore) EndConversation(ctx context.Context, conversationID string) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			ended_at = $1,
			updated_at = $1
		WHERE conversation_id = $2 AND ended_at IS NULL
	`, now, conversationID)
	return err
}
