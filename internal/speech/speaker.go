// Package speech provides the fire-and-forget voice-output collaborator.
// It is optional glue: chat and auth behavior never depend on it.
package speech

import (
	"log/slog"
	"os/exec"
)

// Noop is a Speaker that does nothing. Used when voice output is
// disabled or in tests.
type Noop struct{}

// Speak implements the collaborator contract.
func (Noop) Speak(text string) {}

// Command speaks text by invoking an external TTS binary, e.g.
// "espeak" or macOS "say". Each call runs in its own goroutine and
// reports nothing back.
type Command struct {
	logger *slog.Logger
	name   string
	args   []string
}

// NewCommand creates a command-backed speaker.
func NewCommand(logger *slog.Logger, name string, args ...string) *Command {
	return &Command{
		logger: logger,
		name:   name,
		args:   args,
	}
}

// Speak runs the TTS command with text as the final argument and
// returns immediately. Failures are logged and otherwise dropped.
func (c *Command) Speak(text string) {
	if text == "" {
		return
	}

	go func() {
		cmd := exec.Command(c.name, append(append([]string{}, c.args...), text)...)
		if err := cmd.Run(); err != nil {
			c.logger.Debug("voice output failed", "command", c.name, "error", err)
		}
	}()
}
