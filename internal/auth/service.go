// Package auth implements registration and login on top of the
// credential store. It is the only place with account business rules.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dsemenov/chatdesk/internal/crypto"
	"github.com/dsemenov/chatdesk/internal/models"
	"github.com/dsemenov/chatdesk/internal/storage"
)

// ErrInvalidCredentials is returned by Login for an unknown username and
// for a wrong password alike. Callers must not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 6

// User-facing registration messages.
const (
	MsgFieldsRequired   = "Please fill in all fields"
	MsgPasswordMismatch = "Passwords don't match"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgUsernameExists   = "Username already exists"
	MsgCreateFailed     = "Failed to create account"
	MsgAccountCreated   = "Account created successfully!"
)

// Service provides registration and login over the user storage.
type Service struct {
	logger *slog.Logger
	users  storage.UserStorage
}

// NewService creates a new auth service.
func NewService(logger *slog.Logger, users storage.UserStorage) *Service {
	return &Service{
		logger: logger,
		users:  users,
	}
}

// RegisterResult carries the outcome of a registration attempt.
// Message is always user-presentable.
type RegisterResult struct {
	OK      bool
	Message string
	UserID  string
}

// Register validates the input and creates the account. Validation rules
// run in a fixed order and the first failing rule wins:
// empty fields, password mismatch, short password, taken username.
func (s *Service) Register(ctx context.Context, username, password, confirm string) RegisterResult {
	if username == "" || password == "" || confirm == "" {
		return RegisterResult{Message: MsgFieldsRequired}
	}

	if password != confirm {
		return RegisterResult{Message: MsgPasswordMismatch}
	}

	if len(password) < MinPasswordLen {
		return RegisterResult{Message: MsgPasswordTooShort}
	}

	// Fast-path duplicate check for a friendly message. Not atomic with
	// the insert below; the storage UNIQUE constraint stays authoritative.
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return RegisterResult{Message: MsgUsernameExists}
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		s.logger.ErrorContext(ctx, "failed to check username", slog.Any("error", err))
		return RegisterResult{Message: MsgCreateFailed}
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate salt", slog.Any("error", err))
		return RegisterResult{Message: MsgCreateFailed}
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: crypto.HashPassword(password, salt),
		Salt:         salt,
		CreatedAt:    time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			// Lost the race against a concurrent registration
			return RegisterResult{Message: MsgUsernameExists}
		}
		s.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return RegisterResult{Message: MsgCreateFailed}
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("username", username),
		slog.String("user_id", user.ID))

	return RegisterResult{OK: true, Message: MsgAccountCreated, UserID: user.ID}
}

// Login verifies the credentials and returns the user id on success.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials
// with no observable difference in shape.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !crypto.VerifyPassword(password, user.PasswordHash, user.Salt) {
		return "", ErrInvalidCredentials
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("username", username),
		slog.String("user_id", user.ID))

	return user.ID, nil
}
