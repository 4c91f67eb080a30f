package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle.
// Keeping the logic out of main ensures deferred cleanup executes before
// the process exits and keeps the entry point testable.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// A single optional positional argument overrides the listening port.
	// Invalid input falls back to the configured port with a warning.
	if len(os.Args) > 1 {
		arg := strings.TrimSpace(os.Args[1])
		if port, err := strconv.Atoi(arg); err == nil && port > 0 && port <= 65535 {
			config.Port = port
		} else {
			log.Warn("Invalid port argument, using default", "argument", arg, "port", config.Port)
		}
	}

	// 2. Shared registries
	registry := runtime.NewRegistry()
	directory := runtime.NewDirectory()

	// 3. Moderation (optional)
	var moderator *moderation.Moderator
	if config.EnableModeration {
		data, err := runtime.LoadCensoredWords()
		if err != nil {
			return fmt.Errorf("loading censored words: %w", err)
		}
		log.Info(fmt.Sprintf("%d censored words loaded [%s]",
			len(data.Words), strings.Join(data.Languages, ",")))

		replacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		m, err := moderation.NewModerator(data.Words, replacement)
		if err != nil {
			return fmt.Errorf("building moderator: %w", err)
		}
		moderator = &m
	}

	router := runtime.NewRouter(log, registry, directory, moderator)

	// 4. Listener
	listener, err := net.Listen("tcp", config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Address(), err)
	}
	relay := server.NewServer(log, listener, registry, directory, router,
		config.MaxLineBytes, config.ShutdownTimeout)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision
	telemetry := workers.NewTelemetryWorker(log, config.TelemetryInterval, registry, directory)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(relay, telemetry)

	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
