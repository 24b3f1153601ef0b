package storage

import (
	"context"

	"github.com/dsemenov/chatdesk/internal/models"
)

// HistoryStorage defines the per-user chat transcript persistence boundary.
type HistoryStorage interface {
	// AppendMessage inserts a new transcript row for the user.
	// The timestamp is assigned by the store at insertion.
	AppendMessage(ctx context.Context, userID, sender, body string) error

	// UserMessages returns all messages for the user in insertion order.
	// Returns an empty slice if there are none.
	UserMessages(ctx context.Context, userID string) ([]*models.ChatMessage, error)

	// ClearMessages deletes all messages for the user.
	// Idempotent: clearing an empty history is not an error.
	ClearMessages(ctx context.Context, userID string) error
}
