// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/atomicfile"
	"github.com/bureau-foundation/casproxy/lib/casrpc"
)

func casCommand(streams IO) *cli.Command {
	return &cli.Command{
		Name:    "cas",
		Summary: "Talk to a running bridge",
		Description: `Send requests to a running "casproxy serve" over its socket.
Useful for checking that the bridge, the credentials, and the cache
endpoint work before involving the build system.`,
		Subcommands: []*cli.Command{
			casLoadCommand(streams),
			casSaveCommand(streams),
			casStatusCommand(streams),
		},
	}
}

// bridgeClient resolves the socket of the configured project.
func bridgeClient(options *socketOptions) (*casrpc.Client, error) {
	if options.socketPath != "" {
		return casrpc.NewClient(options.socketPath), nil
	}
	cfg, err := options.load()
	if err != nil {
		return nil, err
	}
	fullHandle, err := handle(cfg)
	if err != nil {
		return nil, err
	}
	return casrpc.NewClient(options.resolve(cfg, fullHandle)), nil
}

func casLoadCommand(streams IO) *cli.Command {
	var options socketOptions
	var output string
	return &cli.Command{
		Name:    "load",
		Summary: "Fetch an artifact by content id",
		Description: `Fetch an artifact through the bridge and write it to stdout, or to
--output. Exits 1 with a message on stderr when the artifact is not in
the cache.`,
		Usage: "casproxy cas load <content-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := options.flags("load")
			flagSet.StringVarP(&output, "output", "o", "", "write the artifact to this file instead of stdout")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("exactly one content id is required")
			}
			client, err := bridgeClient(&options)
			if err != nil {
				return err
			}
			result := client.Load(ctx, args[0])
			switch {
			case result.Err != nil:
				return cli.FromCacheError(result.Err)
			case result.NotFound:
				fmt.Fprintf(streams.Err, "%s: not in the cache\n", args[0])
				return &cli.ExitError{Code: 1}
			}
			if output != "" {
				if err := atomicfile.WriteFile(output, result.Data, 0o644); err != nil {
					return cli.Internal("writing %s: %w", output, err)
				}
				return nil
			}
			_, err = streams.Out.Write(result.Data)
			return err
		},
	}
}

func casSaveCommand(streams IO) *cli.Command {
	var options socketOptions
	return &cli.Command{
		Name:    "save",
		Summary: "Store a file and print its content id",
		Usage:   "casproxy cas save <file|-> [flags]",
		Flags:   func() *pflag.FlagSet { return options.flags("save") },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("exactly one file is required (use - for stdin)")
			}
			data, err := readInput(args[0], streams.In)
			if err != nil {
				return err
			}
			if len(data) > casrpc.MaxRequestSize {
				return cli.Validation("%s is %d bytes; the bridge accepts at most %d", args[0], len(data), casrpc.MaxRequestSize)
			}
			client, err := bridgeClient(&options)
			if err != nil {
				return err
			}
			result := client.Save(ctx, data)
			if result.Err != nil {
				return cli.FromCacheError(result.Err)
			}
			fmt.Fprintln(streams.Out, result.ID)
			return nil
		},
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, cli.Internal("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cli.NotFound("%s does not exist", path)
		}
		return nil, cli.Internal("reading %s: %w", path, err)
	}
	return data, nil
}

func casStatusCommand(streams IO) *cli.Command {
	var options socketOptions
	return &cli.Command{
		Name:    "status",
		Summary: "Describe a running bridge",
		Description: `Print the bridge's version, server, project, selected cache
endpoint, and token kind as JSON.`,
		Usage: "casproxy cas status [flags]",
		Flags: func() *pflag.FlagSet { return options.flags("status") },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			client, err := bridgeClient(&options)
			if err != nil {
				return err
			}
			status, err := client.Status(ctx)
			if err != nil {
				return cli.FromCacheError(err)
			}
			return cli.WriteJSON(streams.Out, status)
		},
	}
}
