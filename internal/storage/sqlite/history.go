package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dsemenov/chatdesk/internal/models"
)

// AppendMessage inserts a new transcript row.
// The timestamp comes from the column default so ordering is owned by
// the store, not the caller.
func (s *Storage) AppendMessage(ctx context.Context, userID, sender, body string) error {
	query := `
		INSERT INTO chat_history (user_id, sender, message)
		VALUES (?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, userID, sender, body); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// UserMessages returns all messages for the user in insertion order.
// The id tiebreak keeps ordering stable when two rows share a
// second-resolution timestamp.
func (s *Storage) UserMessages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, user_id, timestamp, sender, message
		FROM chat_history
		WHERE user_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanMessages(rows)
}

// ClearMessages deletes all messages for the user. Deleting zero rows
// is success: the operation is idempotent.
func (s *Storage) ClearMessages(ctx context.Context, userID string) error {
	query := `DELETE FROM chat_history WHERE user_id = ?`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	return nil
}

func scanMessages(rows *sql.Rows) ([]*models.ChatMessage, error) {
	messages := []*models.ChatMessage{}

	for rows.Next() {
		msg := &models.ChatMessage{}
		var timestamp string

		err := rows.Scan(
			&msg.ID,
			&msg.UserID,
			&timestamp,
			&msg.Sender,
			&msg.Body,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Timestamp = parseTimestamp(timestamp)

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return messages, nil
}

// parseTimestamp decodes the text form CURRENT_TIMESTAMP produces.
// Ordering is carried by the query, so an unparseable value degrades to
// the zero time rather than failing the whole load.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
