// Package cli is the terminal front end. It implements app.UI on top
// of plain stdin/stdout so the state machine stays testable without a
// terminal.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/dsemenov/chatdesk/internal/app"
)

type Cli struct {
	in  *bufio.Reader
	out io.Writer

	// hidePasswords switches the password prompts to no-echo mode.
	// Only valid when stdin is an interactive terminal.
	hidePasswords bool
}

// New creates a CLI reading from in and writing to out. Password
// echo suppression is enabled only when stdin is a real terminal.
func New(in io.Reader, out io.Writer) *Cli {
	return &Cli{
		in:            bufio.NewReader(in),
		out:           out,
		hidePasswords: in == os.Stdin && term.IsTerminal(int(syscall.Stdin)),
	}
}

// SelectAction shows the logged-out menu.
func (c *Cli) SelectAction(ctx context.Context) (app.Action, error) {
	for {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "=== ChatDesk ===")
		fmt.Fprintln(c.out, "  1) Login")
		fmt.Fprintln(c.out, "  2) Register")
		fmt.Fprintln(c.out, "  3) Quit")

		choice, err := c.readInput("Select an option: ")
		if err != nil {
			return 0, err
		}

		switch strings.ToLower(choice) {
		case "1", "login":
			return app.ActionLogin, nil
		case "2", "register":
			return app.ActionRegister, nil
		case "3", "quit", "q":
			return app.ActionQuit, nil
		default:
			fmt.Fprintln(c.out, "Please choose 1, 2 or 3.")
		}
	}
}

// PromptLogin collects a username/password pair.
func (c *Cli) PromptLogin(ctx context.Context) (string, string, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "=== Login ===")

	username, err := c.readInput("Username: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.readPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	return username, password, nil
}

// PromptRegister collects a username/password/confirmation triple.
func (c *Cli) PromptRegister(ctx context.Context) (string, string, string, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "=== Registration ===")

	username, err := c.readInput("Username: ")
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.readPassword("Password (min 6 chars): ")
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.readPassword("Confirm password: ")
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	return username, password, confirm, nil
}

// PromptMessage reads the next chat line. io.EOF means stdin closed.
func (c *Cli) PromptMessage(ctx context.Context) (string, error) {
	return c.readInput("> ")
}

// ShowMessage prints one transcript line as "Sender: text".
func (c *Cli) ShowMessage(sender, text string) {
	fmt.Fprintf(c.out, "%s: %s\n", sender, text)
}

// Notify prints a status line outside the transcript.
func (c *Cli) Notify(text string) {
	fmt.Fprintln(c.out, text)
}

// ConfirmClearHistory asks for a y/N confirmation before wiping the
// transcript. Anything but an explicit yes declines.
func (c *Cli) ConfirmClearHistory(ctx context.Context) (bool, error) {
	answer, err := c.readInput("Delete ALL chat history? This cannot be undone [y/N]: ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Cli) readInput(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	input, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && input != "" {
			return strings.TrimSpace(input), nil
		}
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (c *Cli) readPassword(prompt string) (string, error) {
	if !c.hidePasswords {
		return c.readInput(prompt)
	}

	fmt.Fprint(c.out, prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(c.out) // move past the echo-less input line
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}
