// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/version"
)

// IO holds the streams commands read and write.
type IO struct {
	In  *os.File
	Out io.Writer
	Err io.Writer
}

// StandardIO returns the process streams.
func StandardIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Root builds the complete command tree.
func Root(streams IO) *cli.Command {
	return &cli.Command{
		Name: "casproxy",
		Description: `casproxy: remote compilation-cache bridge.

Brokers content-addressed build artifacts and key/value entries between
a local build system and a remote cache service, managing login tokens
and cache endpoint selection.`,
		Output: streams.Err,
		Subcommands: []*cli.Command{
			serveCommand(streams),
			socketPathCommand(streams),
			authCommand(streams),
			casCommand(streams),
			metadataCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string) error {
					if len(args) > 0 {
						return cli.Validation("unexpected argument: %s", args[0])
					}
					fmt.Fprintf(streams.Out, "casproxy %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
