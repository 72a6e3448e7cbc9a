package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/iudanet/sitekeeper/internal/crypto"
	"github.com/iudanet/sitekeeper/internal/server"
	"github.com/iudanet/sitekeeper/internal/server/config"
	"github.com/iudanet/sitekeeper/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	args := os.Args[1:]
	if slices.Contains(args, "-version") || slices.Contains(args, "--version") {
		printVersion()
		return 0
	}

	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DatabasePath, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = crypto.GenerateSecretBase64()
		if err != nil {
			logger.Error("Failed to generate JWT secret", "error", err)
			return 1
		}
		// токены не переживут перезапуск
		logger.Warn("JWT secret is not configured, using a random one")
	}

	if cfg.AdminUsername != "" {
		if err := server.EnsureOperator(ctx, store, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
			logger.Error("Failed to bootstrap operator", "username", cfg.AdminUsername, "error", err)
			return 1
		}
	}

	logger.Info("Starting sitekeeper server",
		"version", Version,
		"commit", GitCommit,
		"address", cfg.Address,
		"database", cfg.DatabasePath,
	)

	srv := server.New(cfg, store, []byte(secret), Version, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func printVersion() {
	fmt.Printf("Sitekeeper Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
