// Command knostrad runs the conditional-settlement node: the market and bet
// ledger, the settlement engine, and the computation job orchestrator behind
// one HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/knostra/knostrad/internal/app"
	"github.com/knostra/knostrad/internal/config"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println("knostrad", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("knostrad starting",
		slog.String("version", version),
		slog.String("mode", cfg.Mode),
		slog.String("resolver_namespace", cfg.Ledger.ResolverNamespace),
		slog.String("config", configPath),
	)

	node := app.New(cfg, logger)
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("node exited", slog.String("error", err.Error()))
		return err
	}
	logger.Info("knostrad stopped")
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
