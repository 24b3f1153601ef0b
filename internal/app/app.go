// Package app drives the application-level state machine
// LoggedOut -> LoggedIn -> Terminated. Screen mechanics stay behind the
// UI interface; auth and chat logic never construct screens themselves.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dsemenov/chatdesk/internal/auth"
	"github.com/dsemenov/chatdesk/internal/chat"
	"github.com/dsemenov/chatdesk/internal/models"
	"github.com/dsemenov/chatdesk/internal/session"
	"github.com/dsemenov/chatdesk/internal/state"
	"github.com/dsemenov/chatdesk/internal/storage"
)

// Action is what the user chooses on the logged-out screen.
type Action int

const (
	ActionLogin Action = iota
	ActionRegister
	ActionQuit
)

// Chat input lines starting with "/" are commands, not messages.
const (
	cmdLogout = "/logout"
	cmdClear  = "/clear"
)

// UI is the terminal (or any other) front end. It only collects input
// and displays output; all decisions stay in App.
type UI interface {
	// SelectAction asks what to do while logged out.
	SelectAction(ctx context.Context) (Action, error)

	// PromptLogin collects a username/password pair.
	PromptLogin(ctx context.Context) (username, password string, err error)

	// PromptRegister collects a username/password/confirmation triple.
	PromptRegister(ctx context.Context) (username, password, confirm string, err error)

	// PromptMessage reads the next chat input line.
	// Returns io.EOF when the input stream is closed.
	PromptMessage(ctx context.Context) (string, error)

	// ShowMessage displays one transcript line.
	ShowMessage(sender, text string)

	// Notify displays an out-of-transcript status line.
	Notify(text string)

	// ConfirmClearHistory asks for explicit confirmation before a wipe.
	ConfirmClearHistory(ctx context.Context) (bool, error)
}

// AuthService is the slice of auth.Service the app needs.
type AuthService interface {
	Register(ctx context.Context, username, password, confirm string) auth.RegisterResult
	Login(ctx context.Context, username, password string) (string, error)
}

// TokenManager issues and validates session tokens.
type TokenManager interface {
	Issue(userID, username string) (string, error)
	Validate(token string) (*session.Claims, error)
}

// SessionStore persists the local session between launches.
type SessionStore interface {
	SaveSession(ctx context.Context, s *state.Session) error
	GetSession(ctx context.Context) (*state.Session, error)
	DeleteSession(ctx context.Context) error
}

// App wires auth, history, and the chat orchestrator under one
// event-driven loop.
type App struct {
	logger    *slog.Logger
	ui        UI
	auth      AuthService
	tokens    TokenManager
	sessions  SessionStore
	history   storage.HistoryStorage
	completer chat.Completer
	speaker   chat.Speaker
	chatOpts  chat.Options
}

// New creates the application.
func New(logger *slog.Logger, ui UI, authSvc AuthService, tokens TokenManager, sessions SessionStore, history storage.HistoryStorage, completer chat.Completer, speaker chat.Speaker, chatOpts chat.Options) *App {
	return &App{
		logger:    logger,
		ui:        ui,
		auth:      authSvc,
		tokens:    tokens,
		sessions:  sessions,
		history:   history,
		completer: completer,
		speaker:   speaker,
		chatOpts:  chatOpts,
	}
}

// Run drives the state machine until the user quits, says goodbye, or
// the input stream ends.
func (a *App) Run(ctx context.Context) error {
	// A still-valid stored session skips the login screen
	if claims := a.resumeSession(ctx); claims != nil {
		a.ui.Notify(fmt.Sprintf("Welcome back, %s!", claims.Username))
		terminated, err := a.runChat(ctx, claims.UserID, claims.Username)
		if err != nil || terminated {
			return err
		}
	}

	for {
		action, err := a.ui.SelectAction(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read action: %w", err)
		}

		switch action {
		case ActionQuit:
			return nil

		case ActionRegister:
			username, password, confirm, err := a.ui.PromptRegister(ctx)
			if err != nil {
				return fmt.Errorf("failed to read registration input: %w", err)
			}
			result := a.auth.Register(ctx, username, password, confirm)
			a.ui.Notify(result.Message)

		case ActionLogin:
			username, password, err := a.ui.PromptLogin(ctx)
			if err != nil {
				return fmt.Errorf("failed to read login input: %w", err)
			}

			userID, err := a.auth.Login(ctx, username, password)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredentials) {
					a.ui.Notify("Invalid username or password")
				} else {
					a.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
					a.ui.Notify("Login failed, please try again")
				}
				continue
			}

			a.storeSession(ctx, userID, username)

			terminated, err := a.runChat(ctx, userID, username)
			if err != nil {
				return err
			}
			if terminated {
				return nil
			}
		}
	}
}

// resumeSession validates a stored session token, cleaning up anything
// stale. Returns nil when there is nothing to resume.
func (a *App) resumeSession(ctx context.Context) *session.Claims {
	stored, err := a.sessions.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrSessionNotFound) {
			a.logger.WarnContext(ctx, "failed to read stored session", slog.Any("error", err))
		}
		return nil
	}

	claims, err := a.tokens.Validate(stored.Token)
	if err != nil {
		a.logger.DebugContext(ctx, "stored session no longer valid", slog.Any("error", err))
		if err := a.sessions.DeleteSession(ctx); err != nil {
			a.logger.WarnContext(ctx, "failed to delete stale session", slog.Any("error", err))
		}
		return nil
	}

	return claims
}

// storeSession persists the fresh login. Best effort: a failure only
// costs the user a login prompt on the next launch.
func (a *App) storeSession(ctx context.Context, userID, username string) {
	token, err := a.tokens.Issue(userID, username)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to issue session token", slog.Any("error", err))
		return
	}

	if err := a.sessions.SaveSession(ctx, &state.Session{Username: username, Token: token}); err != nil {
		a.logger.WarnContext(ctx, "failed to save session", slog.Any("error", err))
	}
}

func (a *App) dropSession(ctx context.Context) {
	if err := a.sessions.DeleteSession(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to delete session", slog.Any("error", err))
	}
}

// runChat runs the LoggedIn phase. Returns terminated=true when the
// user said goodbye (the whole app exits), false on logout.
func (a *App) runChat(ctx context.Context, userID, username string) (bool, error) {
	sess := chat.NewSession(a.logger, userID, a.history, a.completer, a.speaker, a.chatOpts)

	// Replay the persisted transcript before greeting
	messages, err := sess.History(ctx)
	if err != nil {
		return false, err
	}
	for _, msg := range messages {
		a.ui.ShowMessage(msg.Sender, msg.Body)
	}

	a.ui.ShowMessage(models.SenderAI, chat.Greeting(username))

	for {
		line, err := a.ui.PromptMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			return false, fmt.Errorf("failed to read chat input: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "":
			continue

		case cmdLogout:
			a.dropSession(ctx)
			a.ui.Notify("Logged out.")
			return false, nil

		case cmdClear:
			confirmed, err := a.ui.ConfirmClearHistory(ctx)
			if err != nil {
				return false, fmt.Errorf("failed to read confirmation: %w", err)
			}
			if !confirmed {
				continue
			}
			if err := sess.ClearHistory(ctx); err != nil {
				a.logger.ErrorContext(ctx, "failed to clear history", slog.Any("error", err))
				a.ui.Notify("Failed to clear chat history")
				continue
			}
			a.ui.Notify("All chat history has been deleted.")
			continue
		}

		a.ui.ShowMessage(models.SenderUser, strings.TrimSpace(line))

		reply, err := sess.Submit(ctx, line)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				continue
			}
			return false, fmt.Errorf("failed to submit message: %w", err)
		}

		a.ui.ShowMessage(reply.Sender, reply.Text)

		if reply.Farewell {
			a.dropSession(ctx)
			return true, nil
		}
	}
}
