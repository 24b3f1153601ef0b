package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsemenov/chatdesk/internal/auth"
	"github.com/dsemenov/chatdesk/internal/chat"
	"github.com/dsemenov/chatdesk/internal/models"
	"github.com/dsemenov/chatdesk/internal/session"
	"github.com/dsemenov/chatdesk/internal/state"
)

type shownLine struct {
	sender string
	text   string
}

// scriptedUI replays queued inputs and records everything displayed.
// Exhausted queues return io.EOF, ending the run like a closed stdin.
type scriptedUI struct {
	actions   []Action
	logins    [][2]string
	registers [][3]string
	lines     []string
	confirms  []bool

	shown   []shownLine
	notices []string
}

func (u *scriptedUI) SelectAction(context.Context) (Action, error) {
	if len(u.actions) == 0 {
		return 0, io.EOF
	}
	action := u.actions[0]
	u.actions = u.actions[1:]
	return action, nil
}

func (u *scriptedUI) PromptLogin(context.Context) (string, string, error) {
	if len(u.logins) == 0 {
		return "", "", io.EOF
	}
	pair := u.logins[0]
	u.logins = u.logins[1:]
	return pair[0], pair[1], nil
}

func (u *scriptedUI) PromptRegister(context.Context) (string, string, string, error) {
	if len(u.registers) == 0 {
		return "", "", "", io.EOF
	}
	triple := u.registers[0]
	u.registers = u.registers[1:]
	return triple[0], triple[1], triple[2], nil
}

func (u *scriptedUI) PromptMessage(context.Context) (string, error) {
	if len(u.lines) == 0 {
		return "", io.EOF
	}
	line := u.lines[0]
	u.lines = u.lines[1:]
	return line, nil
}

func (u *scriptedUI) ShowMessage(sender, text string) {
	u.shown = append(u.shown, shownLine{sender: sender, text: text})
}

func (u *scriptedUI) Notify(text string) {
	u.notices = append(u.notices, text)
}

func (u *scriptedUI) ConfirmClearHistory(context.Context) (bool, error) {
	if len(u.confirms) == 0 {
		return false, io.EOF
	}
	confirmed := u.confirms[0]
	u.confirms = u.confirms[1:]
	return confirmed, nil
}

// fakeAuth is a minimal AuthService for driving the state machine.
type fakeAuth struct {
	passwords map[string]string // username -> password
	ids       map[string]string // username -> user id
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		passwords: make(map[string]string),
		ids:       make(map[string]string),
	}
}

func (f *fakeAuth) Register(_ context.Context, username, password, _ string) auth.RegisterResult {
	if _, ok := f.passwords[username]; ok {
		return auth.RegisterResult{Message: auth.MsgUsernameExists}
	}
	f.passwords[username] = password
	f.ids[username] = "id-" + username
	return auth.RegisterResult{OK: true, Message: auth.MsgAccountCreated, UserID: f.ids[username]}
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (string, error) {
	if stored, ok := f.passwords[username]; ok && stored == password {
		return f.ids[username], nil
	}
	return "", auth.ErrInvalidCredentials
}

// memSessionStore is an in-memory SessionStore.
type memSessionStore struct {
	session *state.Session
}

func (m *memSessionStore) SaveSession(_ context.Context, s *state.Session) error {
	clone := *s
	m.session = &clone
	return nil
}

func (m *memSessionStore) GetSession(context.Context) (*state.Session, error) {
	if m.session == nil {
		return nil, state.ErrSessionNotFound
	}
	clone := *m.session
	return &clone, nil
}

func (m *memSessionStore) DeleteSession(context.Context) error {
	m.session = nil
	return nil
}

// memHistory is an in-memory HistoryStorage.
type memHistory struct {
	messages []shownLine
}

func (m *memHistory) AppendMessage(_ context.Context, _, sender, body string) error {
	m.messages = append(m.messages, shownLine{sender: sender, text: body})
	return nil
}

func (m *memHistory) UserMessages(_ context.Context, userID string) ([]*models.ChatMessage, error) {
	out := make([]*models.ChatMessage, 0, len(m.messages))
	for i, msg := range m.messages {
		out = append(out, &models.ChatMessage{
			ID:     int64(i + 1),
			UserID: userID,
			Sender: msg.sender,
			Body:   msg.text,
		})
	}
	return out, nil
}

func (m *memHistory) ClearMessages(context.Context, string) error {
	m.messages = nil
	return nil
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, text string) (string, error) {
	return "echo: " + text, nil
}

type noopSpeaker struct{}

func (noopSpeaker) Speak(string) {}

type fixture struct {
	ui       *scriptedUI
	auth     *fakeAuth
	tokens   *session.Manager
	sessions *memSessionStore
	history  *memHistory
	app      *App
}

func newFixture(t *testing.T, ui *scriptedUI) *fixture {
	t.Helper()

	tokens, err := session.NewManager([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	f := &fixture{
		ui:       ui,
		auth:     newFakeAuth(),
		tokens:   tokens,
		sessions: &memSessionStore{},
		history:  &memHistory{},
	}
	f.app = New(slog.New(slog.NewTextHandler(io.Discard, nil)), ui, f.auth, tokens, f.sessions, f.history, echoCompleter{}, noopSpeaker{}, chat.Options{})

	return f
}

func TestApp_RegisterLoginChatGoodbye(t *testing.T) {
	ui := &scriptedUI{
		actions:   []Action{ActionRegister, ActionLogin},
		registers: [][3]string{{"alice", "secret1", "secret1"}},
		logins:    [][2]string{{"alice", "secret1"}},
		lines:     []string{"hello", "bye"},
	}
	f := newFixture(t, ui)

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, ui.notices, auth.MsgAccountCreated)

	require.NotEmpty(t, ui.shown)
	assert.Equal(t, models.SenderAI, ui.shown[0].sender)
	assert.Contains(t, ui.shown[0].text, "Hello alice")

	assert.Contains(t, ui.shown, shownLine{sender: models.SenderUser, text: "hello"})
	assert.Contains(t, ui.shown, shownLine{sender: models.SenderAI, text: "echo: hello"})

	// The farewell is shown and the stored session is dropped
	assert.Equal(t, shownLine{sender: models.SenderAI, text: chat.FarewellText}, ui.shown[len(ui.shown)-1])
	assert.Nil(t, f.sessions.session)
}

func TestApp_InvalidLoginStaysLoggedOut(t *testing.T) {
	ui := &scriptedUI{
		actions: []Action{ActionLogin, ActionQuit},
		logins:  [][2]string{{"alice", "wrong"}},
	}
	f := newFixture(t, ui)

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, ui.notices, "Invalid username or password")
	assert.Empty(t, ui.shown)
	assert.Nil(t, f.sessions.session)
}

func TestApp_DuplicateRegistration(t *testing.T) {
	ui := &scriptedUI{
		actions: []Action{ActionRegister, ActionRegister, ActionQuit},
		registers: [][3]string{
			{"alice", "secret1", "secret1"},
			{"alice", "different7", "different7"},
		},
	}
	f := newFixture(t, ui)

	require.NoError(t, f.app.Run(context.Background()))

	require.Len(t, ui.notices, 2)
	assert.Equal(t, auth.MsgAccountCreated, ui.notices[0])
	assert.Equal(t, auth.MsgUsernameExists, ui.notices[1])
}

func TestApp_LogoutReturnsToLoggedOut(t *testing.T) {
	ui := &scriptedUI{
		actions: []Action{ActionLogin, ActionQuit},
		logins:  [][2]string{{"alice", "secret1"}},
		lines:   []string{"/logout"},
	}
	f := newFixture(t, ui)
	f.auth.Register(context.Background(), "alice", "secret1", "secret1")

	require.NoError(t, f.app.Run(context.Background()))

	assert.Contains(t, ui.notices, "Logged out.")
	assert.Nil(t, f.sessions.session)
}

func TestApp_ClearHistoryNeedsConfirmation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		confirm     bool
		wantCleared bool
	}{
		{
			name:        "confirmed clears",
			confirm:     true,
			wantCleared: true,
		},
		{
			name:        "declined keeps history",
			confirm:     false,
			wantCleared: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := &scriptedUI{
				actions:  []Action{ActionLogin},
				logins:   [][2]string{{"alice", "secret1"}},
				lines:    []string{"/clear"},
				confirms: []bool{tt.confirm},
			}
			f := newFixture(t, ui)
			f.auth.Register(ctx, "alice", "secret1", "secret1")
			require.NoError(t, f.history.AppendMessage(ctx, "id-alice", models.SenderUser, "old line"))

			require.NoError(t, f.app.Run(ctx))

			if tt.wantCleared {
				assert.Empty(t, f.history.messages)
				assert.Contains(t, ui.notices, "All chat history has been deleted.")
			} else {
				assert.Len(t, f.history.messages, 1)
			}
		})
	}
}

func TestApp_HistoryReplayedBeforeGreeting(t *testing.T) {
	ctx := context.Background()
	ui := &scriptedUI{
		actions: []Action{ActionLogin},
		logins:  [][2]string{{"alice", "secret1"}},
	}
	f := newFixture(t, ui)
	f.auth.Register(ctx, "alice", "secret1", "secret1")
	require.NoError(t, f.history.AppendMessage(ctx, "id-alice", models.SenderUser, "earlier question"))
	require.NoError(t, f.history.AppendMessage(ctx, "id-alice", models.SenderAI, "earlier answer"))

	require.NoError(t, f.app.Run(ctx))

	require.GreaterOrEqual(t, len(ui.shown), 3)
	assert.Equal(t, "earlier question", ui.shown[0].text)
	assert.Equal(t, "earlier answer", ui.shown[1].text)
	assert.Contains(t, ui.shown[2].text, "Hello alice")
}

func TestApp_ResumesValidStoredSession(t *testing.T) {
	ctx := context.Background()
	ui := &scriptedUI{
		lines: []string{"bye"},
	}
	f := newFixture(t, ui)

	token, err := f.tokens.Issue("id-alice", "alice")
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveSession(ctx, &state.Session{Username: "alice", Token: token}))

	require.NoError(t, f.app.Run(ctx))

	assert.Contains(t, ui.notices, "Welcome back, alice!")
	require.NotEmpty(t, ui.shown)
	assert.Contains(t, ui.shown[0].text, "Hello alice")
}

func TestApp_StaleStoredSessionFallsBackToLogin(t *testing.T) {
	ctx := context.Background()
	ui := &scriptedUI{
		actions: []Action{ActionQuit},
	}
	f := newFixture(t, ui)

	// Token signed with a different key is rejected on resume
	otherTokens, err := session.NewManager([]byte("other-secret"), time.Hour)
	require.NoError(t, err)
	token, err := otherTokens.Issue("id-alice", "alice")
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveSession(ctx, &state.Session{Username: "alice", Token: token}))

	require.NoError(t, f.app.Run(ctx))

	// The stale session is cleaned up and no chat was entered
	assert.Nil(t, f.sessions.session)
	assert.Empty(t, ui.shown)
}
