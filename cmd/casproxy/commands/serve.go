// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/casrpc"
	"github.com/bureau-foundation/casproxy/lib/config"
	"github.com/bureau-foundation/casproxy/lib/remote"
	"github.com/bureau-foundation/casproxy/lib/version"
)

// socketOptions adds --socket to the common flags.
type socketOptions struct {
	commonOptions
	socketPath string
}

func (o *socketOptions) flags(name string) *pflag.FlagSet {
	flagSet := newFlagSet(name, &o.commonOptions)
	flagSet.StringVar(&o.socketPath, "socket", "", "socket path (default: derived from the state dir and full handle)")
	return flagSet
}

// resolve returns the socket path, deriving it when --socket is unset.
func (o *socketOptions) resolve(cfg *config.Config, handle remote.FullHandle) string {
	if o.socketPath != "" {
		return o.socketPath
	}
	return casrpc.SocketPath(cfg.Paths.StateDir, handle)
}

func serveCommand(streams IO) *cli.Command {
	var options socketOptions
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the cache bridge on a Unix socket",
		Description: `Run the cache bridge until interrupted.

The bridge listens on a Unix socket and serves load, save, put_value,
get_value, and status requests from the build system. Tokens are
refreshed on demand and the fastest cache endpoint is selected on the
first request. Logs are written to stderr as JSON.`,
		Usage: "casproxy serve --full-handle <account/project> [flags]",
		Examples: []cli.Example{
			{
				Description: "Serve the ios-app project of the acme account",
				Command:     "casproxy serve --full-handle acme/ios-app --server-url https://cache.example.com",
			},
		},
		Flags: func() *pflag.FlagSet { return options.flags("serve") },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			fullHandle, err := handle(cfg)
			if err != nil {
				return err
			}
			if err := cfg.EnsurePaths(); err != nil {
				return cli.Internal("%w", err)
			}

			level, _ := config.ParseLogLevel(cfg.LogLevel)
			logger := cli.NewServiceLogger(streams.Err, level).With("full_handle", fullHandle.String())

			application, err := newApp(cfg, logger)
			if err != nil {
				return cli.Internal("%w", err)
			}
			service, err := application.service(fullHandle)
			if err != nil {
				return err
			}

			socketPath := options.resolve(cfg, fullHandle)
			logger.Info("casproxy bridge starting",
				"version", version.Short(),
				"server_url", cfg.ServerURL,
				"socket", socketPath,
				"compression", cfg.Compression,
				"ci", cfg.Env.CI,
			)
			if err := casrpc.NewServer(socketPath, service, logger).Serve(ctx); err != nil {
				return cli.Internal("serving: %w", err)
			}
			logger.Info("casproxy bridge stopped")
			return nil
		},
	}
}

func socketPathCommand(streams IO) *cli.Command {
	var options commonOptions
	return &cli.Command{
		Name:    "socket-path",
		Summary: "Print the socket path for a project",
		Description: `Print the Unix socket path "casproxy serve" listens on for a
project. Build system plugins use this to find the bridge.`,
		Usage: "casproxy socket-path --full-handle <account/project> [flags]",
		Flags: func() *pflag.FlagSet { return newFlagSet("socket-path", &options) },
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			fullHandle, err := handle(cfg)
			if err != nil {
				return err
			}
			_, err = io.WriteString(streams.Out, casrpc.SocketPath(cfg.Paths.StateDir, fullHandle)+"\n")
			return err
		},
	}
}
