package models

import "time"

// Sender role tags as they appear in the transcript and in storage.
const (
	SenderUser = "You"
	SenderAI   = "AI"
)

// ChatMessage represents one persisted transcript line.
type ChatMessage struct {
	ID        int64     `json:"id"`      // autoincrement, assigned by the store
	UserID    string    `json:"user_id"` // owning user, not enforced by FK
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"` // SenderUser or SenderAI
	Body      string    `json:"body"`
}
