package models

import "time"

// User represents a registered account.
// PasswordHash and Salt never leave the storage/auth boundary.
type User struct {
	ID           string    `json:"id"`       // UUID, assigned at creation
	Username     string    `json:"username"` // unique, case-sensitive
	PasswordHash string    `json:"-"`        // hex SHA-512 of password+salt
	Salt         string    `json:"-"`        // random hex string, per user
	CreatedAt    time.Time `json:"created_at"`
}
