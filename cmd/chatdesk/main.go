package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dsemenov/chatdesk/internal/app"
	"github.com/dsemenov/chatdesk/internal/auth"
	"github.com/dsemenov/chatdesk/internal/chat"
	"github.com/dsemenov/chatdesk/internal/cli"
	"github.com/dsemenov/chatdesk/internal/completion"
	"github.com/dsemenov/chatdesk/internal/session"
	"github.com/dsemenov/chatdesk/internal/speech"
	"github.com/dsemenov/chatdesk/internal/state"
	"github.com/dsemenov/chatdesk/internal/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	dbPath := flag.String("db", "chatdesk.db", "Path to the chat database")
	statePath := flag.String("state", "chatdesk-state.db", "Path to the local state database")
	apiURL := flag.String("api-url", "https://api.openai.com", "Completion API base URL")
	model := flag.String("model", completion.DefaultModel, "Completion model")
	speakCmd := flag.String("speak-cmd", "", "Command used to speak AI replies aloud (empty disables speech)")
	strictHistory := flag.Bool("strict-history", false, "Fail instead of showing an empty transcript when history cannot be loaded")
	sessionTTL := flag.Duration("session-ttl", session.DefaultTTL, "How long a login session stays valid")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(context.Background(), config{
		dbPath:        *dbPath,
		statePath:     *statePath,
		apiURL:        *apiURL,
		apiKey:        os.Getenv("OPENAI_API_KEY"),
		model:         *model,
		speakCmd:      *speakCmd,
		strictHistory: *strictHistory,
		sessionTTL:    *sessionTTL,
		debug:         *debug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	dbPath        string
	statePath     string
	apiURL        string
	apiKey        string
	model         string
	speakCmd      string
	strictHistory bool
	sessionTTL    time.Duration
	debug         bool
}

func run(ctx context.Context, cfg config) error {
	logLevel := slog.LevelInfo
	if cfg.debug {
		logLevel = slog.LevelDebug
	}
	// Logs go to stderr so they never interleave with the transcript
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	db, err := sqlite.New(ctx, cfg.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close database", slog.Any("error", err))
		}
	}()

	stateStore, err := state.New(ctx, cfg.statePath)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close state database", slog.Any("error", err))
		}
	}()

	secret, err := stateStore.SigningSecret(ctx)
	if err != nil {
		return fmt.Errorf("failed to load signing secret: %w", err)
	}

	tokens, err := session.NewManager(secret, cfg.sessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	var speaker chat.Speaker = speech.Noop{}
	if cfg.speakCmd != "" {
		parts := strings.Fields(cfg.speakCmd)
		speaker = speech.NewCommand(logger, parts[0], parts[1:]...)
	}

	application := app.New(
		logger,
		cli.New(os.Stdin, os.Stdout),
		auth.NewService(logger, db),
		tokens,
		stateStore,
		db,
		completion.NewClient(cfg.apiURL, cfg.apiKey, cfg.model),
		speaker,
		chat.Options{StrictHistory: cfg.strictHistory},
	)

	return application.Run(ctx)
}

func printVersion() {
	fmt.Printf("ChatDesk\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
