// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/cas"
	"github.com/bureau-foundation/casproxy/lib/config"
	"github.com/bureau-foundation/casproxy/lib/metadata"
)

func metadataCommand(streams IO) *cli.Command {
	return &cli.Command{
		Name:    "metadata",
		Summary: "Inspect recorded transfer metadata",
		Subcommands: []*cli.Command{
			metadataShowCommand(streams),
		},
	}
}

func metadataShowCommand(streams IO) *cli.Command {
	var configPath string
	var key string
	var operation string
	return &cli.Command{
		Name:    "show",
		Summary: "Print the metadata recorded for an artifact or key",
		Description: `Print the size, duration, and compressed size recorded the last time
an artifact was transferred. With --key, print the metadata of a
key/value read or write instead.`,
		Usage: "casproxy metadata show <content-id> | --key <key> [--operation read|write]",
		Examples: []cli.Example{
			{Description: "Show an artifact", Command: "casproxy metadata show 3A4F...E1"},
			{Description: "Show the last write of a key", Command: "casproxy metadata show --key 'action digest' --operation write"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $"+config.EnvConfig+")")
			flagSet.StringVar(&key, "key", "", "key/value key instead of a content id")
			flagSet.StringVar(&operation, "operation", string(metadata.Read), "key/value operation: read or write")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			// Metadata only needs the state dir, not a server.
			var cfg *config.Config
			var err error
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return cli.Validation("loading config: %w", err)
			}
			store := metadata.NewStore(cfg.Paths.StateDir, commandLogger(cfg))

			var entry *metadata.Entry
			var subject string
			switch {
			case key != "" && len(args) == 0:
				subject = cas.KeyID([]byte(key))
				entry, err = store.KeyValue(subject, metadata.Operation(operation))
			case key == "" && len(args) == 1:
				subject = args[0]
				entry, err = store.CAS(subject)
			default:
				return cli.Validation("exactly one of <content-id> or --key is required")
			}
			if err != nil {
				return cli.Validation("%w", err)
			}
			if entry == nil {
				return cli.NotFound("no metadata recorded for %s", subject)
			}
			return cli.WriteJSON(streams.Out, entry)
		},
	}
}
