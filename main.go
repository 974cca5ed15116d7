package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/karthikraju391/codecrush/auth"
	"github.com/karthikraju391/codecrush/config"
	"github.com/karthikraju391/codecrush/handlers"
	"github.com/karthikraju391/codecrush/nats_service"
	"github.com/karthikraju391/codecrush/store"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the relay and serves until SIGINT or SIGTERM.
func run() error {
	cfg, err := config.LoadRelay()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	st, err := store.Open(cfg.BadgerFilepath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = st.Close()
	}()

	// --- NATS ---
	natsSvc, err := nats_service.NewNatsService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize NATS service: %w", err)
	}
	defer natsSvc.Close()
	log.Info("NATS service initialized", "url", cfg.NatsURL, "stream", cfg.StreamName)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenDuration)
	if err != nil {
		return err
	}

	// --- HTTP and socket ---
	app := handlers.NewApp(handlers.New(cfg, st, natsSvc, tokens, log))

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", cfg.ServerAddr)
		serveErr <- app.Listen(cfg.ServerAddr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Error("Error shutting down Fiber", "error", err)
	}
	log.Info("Server gracefully stopped")
	return nil
}
