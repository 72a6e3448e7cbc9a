package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/api"
	"github.com/iudanet/sitekeeper/internal/client/auth"
	"github.com/iudanet/sitekeeper/internal/client/cli"
	"github.com/iudanet/sitekeeper/internal/client/engine"
	"github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/client/iocli"
	"github.com/iudanet/sitekeeper/internal/client/storage/boltdb"
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
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "sitekeeper-admin.db", "Path to local database")
	layoutSpec := flag.String("layout", os.Getenv("SITEKEEPER_LAYOUT"), "Known sections per topic, e.g. 'home=hero,features,cta'")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	syncTimeout := flag.Duration("sync-timeout", 15*time.Second, "How long to wait for a topic to sync")
	saveTimeout := flag.Duration("save-timeout", 10*time.Second, "Timeout of a single save")

	flag.Parse()

	if *showVersion {
		printVersion()
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		return 1
	}

	layouts, err := cli.ParseLayouts(*layoutSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// логи движка идут в stderr, чтобы не мешать выводу команд
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Открываем BoltDB storage
	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := api.NewClient(*serverURL)
	authService := auth.NewService(apiClient, boltStorage, *serverURL, logger)

	cfg := engine.DefaultConfig()
	cfg.SaveTimeout = *saveTimeout

	newEngine := func(ctx context.Context) (cli.Console, func(), error) {
		transport := feed.NewWebSocketTransport(*serverURL, apiClient.Token, logger)
		eng := engine.New(apiClient, transport, cfg, logger)
		eng.Start(ctx)
		return eng, eng.Close, nil
	}

	console := cli.New(iocli.NewStdio(), authService, apiClient, boltStorage, newEngine, cli.Options{
		Layouts:     layouts,
		SyncTimeout: *syncTimeout,
	})
	defer console.Close()

	if err := console.Run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}

func printVersion() {
	fmt.Printf("Sitekeeper Admin Console\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
