// Package chat orchestrates one logged-in chat session: it relays user
// text to the completion collaborator and records both sides of the
// exchange into the history store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dsemenov/chatdesk/internal/models"
	"github.com/dsemenov/chatdesk/internal/storage"
)

// State is the per-message orchestrator state.
type State int

const (
	// StateIdle means the session is ready for the next message.
	StateIdle State = iota
	// StateAwaitingResponse means a message is in flight to the completer.
	StateAwaitingResponse
	// StateTerminated means the user said goodbye; no further messages.
	StateTerminated
)

var (
	// ErrEmptyMessage is returned when the submitted text is blank.
	ErrEmptyMessage = errors.New("empty message")

	// ErrBusy is returned while a previous message awaits its response.
	ErrBusy = errors.New("previous message still awaiting response")

	// ErrTerminated is returned after the session has ended.
	ErrTerminated = errors.New("session terminated")
)

// FarewellText is the reply to an exit keyword.
const FarewellText = "Goodbye! Have a great day!"

// exitKeywords end the session, matched case-insensitively.
var exitKeywords = map[string]struct{}{
	"bye":  {},
	"exit": {},
	"quit": {},
}

// Completer is the external completion collaborator.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// Speaker is the fire-and-forget voice-output collaborator.
type Speaker interface {
	Speak(text string)
}

// Reply is what the UI displays for one submitted message.
type Reply struct {
	Sender   string
	Text     string
	Farewell bool // true when the session ended with this reply
}

// Options tune session behavior.
type Options struct {
	// StrictHistory surfaces history-load failures to the caller
	// instead of degrading to an empty transcript.
	StrictHistory bool
}

// Session relays messages for a single authenticated user.
// Safe for use from a goroutine separate from the UI loop.
type Session struct {
	logger    *slog.Logger
	history   storage.HistoryStorage
	completer Completer
	speaker   Speaker
	userID    string
	opts      Options

	mu    sync.Mutex
	state State
}

// NewSession creates a session for the authenticated user.
func NewSession(logger *slog.Logger, userID string, history storage.HistoryStorage, completer Completer, speaker Speaker, opts Options) *Session {
	return &Session{
		logger:    logger,
		history:   history,
		completer: completer,
		speaker:   speaker,
		userID:    userID,
		opts:      opts,
	}
}

// State returns the current orchestrator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Greeting returns the session-opening message for the user.
func Greeting(username string) string {
	return fmt.Sprintf("Hello %s, I'm your AI chatbot to help you through your daily activities. How can I assist you today?", username)
}

// History returns the persisted transcript in insertion order.
// By default a storage failure degrades to an empty transcript and a
// log entry; with StrictHistory the error is returned instead.
func (s *Session) History(ctx context.Context) ([]*models.ChatMessage, error) {
	messages, err := s.history.UserMessages(ctx, s.userID)
	if err != nil {
		if s.opts.StrictHistory {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		s.logger.ErrorContext(ctx, "failed to load chat history",
			slog.String("user_id", s.userID), slog.Any("error", err))
		return []*models.ChatMessage{}, nil
	}
	return messages, nil
}

// ClearHistory deletes the whole transcript for this user.
// The UI must confirm with the user before calling this.
func (s *Session) ClearHistory(ctx context.Context) error {
	if err := s.history.ClearMessages(ctx, s.userID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Submit relays one user message and returns the reply to display.
//
// Exit keywords (bye, exit, quit) produce a farewell reply, end the
// session, and persist nothing. Otherwise the user message is recorded,
// the completer is invoked, and its reply is recorded and spoken. A
// completer failure is surfaced as a normal-looking AI reply but is not
// persisted, and the session stays usable.
func (s *Session) Submit(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return nil, ErrTerminated
	case StateAwaitingResponse:
		s.mu.Unlock()
		return nil, ErrBusy
	}

	if _, ok := exitKeywords[strings.ToLower(text)]; ok {
		s.state = StateTerminated
		s.mu.Unlock()
		s.speaker.Speak(FarewellText)
		return &Reply{Sender: models.SenderAI, Text: FarewellText, Farewell: true}, nil
	}

	s.state = StateAwaitingResponse
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}()

	if err := s.history.AppendMessage(ctx, s.userID, models.SenderUser, text); err != nil {
		// Log and continue: losing one transcript row must not block the chat
		s.logger.ErrorContext(ctx, "failed to persist user message",
			slog.String("user_id", s.userID), slog.Any("error", err))
	}

	response, err := s.completer.Complete(ctx, text)
	if err != nil {
		s.logger.WarnContext(ctx, "completion failed",
			slog.String("user_id", s.userID), slog.Any("error", err))
		return &Reply{
			Sender: models.SenderAI,
			Text:   fmt.Sprintf("Sorry, I encountered an error: %v", err),
		}, nil
	}

	if err := s.history.AppendMessage(ctx, s.userID, models.SenderAI, response); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist AI message",
			slog.String("user_id", s.userID), slog.Any("error", err))
	}

	s.speaker.Speak(response)

	return &Reply{Sender: models.SenderAI, Text: response}, nil
}
