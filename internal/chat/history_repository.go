package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nutrilanka/internal/database"
)

// Message is one turn of a conversation.
type Message struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Role names the speaker for prompts.
func (m Message) Role() string {
	if m.IsUser {
		return "User"
	}
	return "Assistant"
}

// HistoryRepository stores conversations in SQLite.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save appends a message to the user's conversation.
func (r *HistoryRepository) Save(ctx context.Context, userID string, m Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_history (user_id, text, is_user, created_at) VALUES (?, ?, ?, ?)`,
		userID, m.Text, m.IsUser, database.FormatTime(m.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to save chat message for user %s: %w", userID, err)
	}
	return nil
}

// Recent returns the user's last limit messages in chronological order.
func (r *HistoryRepository) Recent(ctx context.Context, userID string, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT text, is_user, created_at FROM chat_history
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m         Message
			createdAt string
		)
		if err := rows.Scan(&m.Text, &m.IsUser, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if m.Timestamp, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
