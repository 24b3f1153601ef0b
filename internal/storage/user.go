package storage

import (
	"context"

	"github.com/dsemenov/chatdesk/internal/models"
)

// UserStorage defines the credential store persistence boundary.
// Implementations own the users table exclusively; password hashes and
// salts are returned only to the auth layer for verification.
type UserStorage interface {
	// CreateUser inserts a new user record.
	// Returns ErrUserAlreadyExists if the username is taken; the
	// storage-level uniqueness constraint is the authoritative signal.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves a user by username.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves a user by ID.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}
