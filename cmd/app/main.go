package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"branch-supply/internal/adapters/cli"
	"branch-supply/internal/adapters/repl"
	"branch-supply/internal/bootstrap"
	"branch-supply/internal/config"
	"branch-supply/internal/logger"
)

// With arguments the first one names a one-shot command; without arguments
// the interactive console starts.
func main() {
	cfg, err := config.Load("", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Operator output goes to stdout; logs stay quiet unless something fails.
	log := logger.NewWithWriter(logger.Config{Level: "warn", ServiceName: "branch-supply-app"}, os.Stderr)

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{ClientName: "branch-supply-app"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if len(os.Args) > 1 {
		err = cli.Run(ctx, rt.Service, os.Args[1:], os.Stdout)
	} else {
		err = repl.Run(ctx, rt.Service, bufio.NewReader(os.Stdin), os.Stdout)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		rt.Close()
		os.Exit(1)
	}
}
