// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/cmd/casproxy/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var toolErr *cli.ToolError
		if errors.As(err, &toolErr) && toolErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", toolErr.Hint)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root(commands.StandardIO()).Execute(ctx, os.Args[1:])
}
