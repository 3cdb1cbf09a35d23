// Taskdeck is a conversational task manager.
//
// It exposes an HTTP API for user accounts, tasks, and chat
// conversations; chat messages are handled by a Gemini-backed agent
// that manages the user's task list through tool calls. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	taskdeck serve       Start the API server
//	taskdeck version     Print version and build information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskdeck/taskdeck/internal/agent"
	"github.com/taskdeck/taskdeck/internal/api"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/buildinfo"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/store"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// main constructs the OS-level environment and delegates to run, which
// keeps os.Exit and os.Args out of the application logic.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer, args []string) error {
	var configPath string
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	switch command {
	case "", "serve":
		return cmdServe(ctx, stdout, configPath)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintf(w, `Usage: taskdeck [flags] <command>

Commands:
  serve     Start the API server (default)
  version   Print version and build information
  help      Show this help

Flags:
  -config <path>   Path to config file (default: search %s)
`, strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

func cmdServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level)
	slog.SetDefault(logger)

	logger.Info("starting",
		"version", buildinfo.Version,
		"config", cfgPath,
		"model", cfg.Gemini.Model,
	)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	logger.Info("database ready", "path", cfg.Database.Path)

	client := llm.NewGeminiClient(cfg.Gemini.APIKey, logger)
	registry := tools.NewRegistry(st)
	loop := agent.New(st, registry, client, cfg.Gemini.Model, logger)
	am := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, st, loop, am, logger)

	// Reminder sweep: log tasks coming due so operators can wire
	// notification delivery off the log stream.
	var sweeper *cron.Cron
	if cfg.Reminders.Enabled {
		sweeper = cron.New()
		_, err := sweeper.AddFunc("@every 1m", func() { sweepReminders(ctx, st, logger) })
		if err != nil {
			return fmt.Errorf("schedule reminder sweep: %w", err)
		}
		sweeper.Start()
		logger.Info("reminder sweep enabled", "interval", "1m")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		if sweeper != nil {
			sweeper.Stop()
		}
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Taskdeck stopped")
	return nil
}

// sweepReminders logs every task due within the next hour, per user.
func sweepReminders(ctx context.Context, st *store.Store, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	users, err := st.ListUserIDs(ctx)
	if err != nil {
		logger.Error("reminder sweep: list users failed", "error", err)
		return
	}

	for _, userID := range users {
		due, err := st.DueWithin(ctx, userID, time.Hour)
		if err != nil {
			logger.Error("reminder sweep failed", "user_id", userID, "error", err)
			continue
		}
		for _, task := range due {
			logger.Info("task due soon",
				"user_id", userID,
				"task_id", task.ID,
				"title", task.Title,
				"due", task.DueDate,
			)
		}
	}
}

// newLogger creates a structured text logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
