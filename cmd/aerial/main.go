// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/ManuGH/aerial/internal/log"
	"github.com/joho/godotenv"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return 0
	}

	switch args[0] {
	case "plan":
		return runPlan(args[1:], stdout, stderr)
	case "simulate":
		return runSimulate(ctx, args[1:], stderr)
	case "version":
		fmt.Fprintf(stdout, "%s (commit: %s, built: %s)\n", version, commit, buildDate)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  aerial plan --duration-ms N [--position-ms N] [--speed X] [--loop-count N] [--config aerial.yaml]")
	fmt.Fprintln(w, "  aerial simulate [--config aerial.yaml] [--listen :9090] [--scale 10] [--for 5m] [--skip-open]")
	fmt.Fprintln(w, "  aerial version")
}

// loadDotEnv loads a .env file into the process environment if present.
// Variables already set win.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func configureLogging(level string, out io.Writer) {
	xglog.Reset()
	xglog.Configure(xglog.Config{
		Level:   level,
		Output:  out,
		Service: "aerial",
		Version: version,
	})
}
