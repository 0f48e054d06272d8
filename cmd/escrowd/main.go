// Command escrowd serves a voucher escrow over HTTP.
//
// Usage:
//
//	escrowd -config escrowd.yaml
//
// Every setting can be overridden with an ESCROW_* environment variable,
// e.g. ESCROW_OWNER or ESCROW_FEE_BPS. The journal is kept in memory; embed
// the extension package to persist it through a grove database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/escrow/store/memory"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "escrowd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath, os.Getenv)
	if err != nil {
		return err
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, memory.New(), logger)
	if err != nil {
		return err
	}
	logger.Warn("journal is held in memory and is lost on exit")
	return a.run(ctx)
}
