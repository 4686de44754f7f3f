// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/auth"
)

func authCommand(streams IO) *cli.Command {
	return &cli.Command{
		Name:    "auth",
		Summary: "Manage cache service credentials",
		Description: `Manage the credentials casproxy uses for a cache service.

Credentials are stored per server host under the config directory with
owner-only permissions. Under CI, CASPROXY_TOKEN is used instead and
nothing is read from disk.`,
		Subcommands: []*cli.Command{
			loginCommand(streams),
			logoutCommand(streams),
			refreshTokenCommand(streams),
			whoamiCommand(streams),
		},
	}
}

// authApp loads configuration and builds the components for the auth
// subcommands.
func authApp(options *commonOptions) (*app, error) {
	cfg, err := options.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, cli.Internal("%w", err)
	}
	application, err := newApp(cfg, commandLogger(cfg))
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	return application, nil
}

func loginCommand(streams IO) *cli.Command {
	var options commonOptions
	return &cli.Command{
		Name:    "login",
		Summary: "Store an access and refresh token",
		Description: `Store the access and refresh tokens issued by the cache service.

On a terminal both tokens are prompted for with echo disabled.
Otherwise they are read from stdin, one per line. The tokens are
validated before anything is written.`,
		Usage: "casproxy auth login [flags]",
		Examples: []cli.Example{
			{
				Description: "Log in interactively",
				Command:     "casproxy auth login --server-url https://cache.example.com",
			},
			{
				Description: "Log in from a secrets manager",
				Command:     "printf '%s\\n%s\\n' \"$ACCESS\" \"$REFRESH\" | casproxy auth login",
			},
		},
		Flags: func() *pflag.FlagSet { return newFlagSet("login", &options) },
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			application, err := authApp(&options)
			if err != nil {
				return err
			}

			reader := cli.NewSecretReader(streams.In, streams.Err)
			accessToken, err := reader.Read("Access token")
			if err != nil {
				return err
			}
			refreshToken, err := reader.Read("Refresh token")
			if err != nil {
				return err
			}

			serverURL := application.config.ServerURL
			token, err := application.auth.Store(serverURL, accessToken, refreshToken)
			if err != nil {
				return cli.FromCacheError(err)
			}
			fmt.Fprintf(streams.Out, "Logged in to %s%s\n", serverURL, describeExpiry(token))
			return nil
		},
	}
}

func logoutCommand(streams IO) *cli.Command {
	var options commonOptions
	return &cli.Command{
		Name:    "logout",
		Summary: "Delete stored credentials",
		Usage:   "casproxy auth logout [flags]",
		Flags:   func() *pflag.FlagSet { return newFlagSet("logout", &options) },
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			application, err := authApp(&options)
			if err != nil {
				return err
			}
			if err := application.auth.Logout(application.config.ServerURL); err != nil {
				return cli.Internal("deleting credentials: %w", err)
			}
			fmt.Fprintf(streams.Out, "Logged out of %s\n", application.config.ServerURL)
			return nil
		},
	}
}

func refreshTokenCommand(streams IO) *cli.Command {
	var options commonOptions
	return &cli.Command{
		Name:    "refresh-token",
		Summary: "Refresh the stored access token now",
		Description: `Exchange the stored refresh token for a new token pair, even if the
current access token is still valid. Concurrent refreshes from other
casproxy processes are coordinated through a lock file.`,
		Usage: "casproxy auth refresh-token [flags]",
		Flags: func() *pflag.FlagSet { return newFlagSet("refresh-token", &options) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			application, err := authApp(&options)
			if err != nil {
				return err
			}
			token, err := application.auth.Refresh(ctx, application.config.ServerURL, true)
			if err != nil {
				return cli.FromCacheError(err)
			}
			fmt.Fprintf(streams.Out, "Refreshed token for %s%s\n", application.config.ServerURL, describeExpiry(token))
			return nil
		},
	}
}

// whoami is the JSON shape printed by "auth whoami".
type whoami struct {
	ServerURL string `json:"server_url"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject,omitempty"`
	Type      string `json:"type,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func whoamiCommand(streams IO) *cli.Command {
	var options commonOptions
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the credential casproxy would use",
		Description: `Print the kind, subject, and expiry of the token casproxy would send
to the cache service, refreshing it first if it is about to expire.
Exits 1 without output when there are no credentials.`,
		Usage: "casproxy auth whoami [flags]",
		Flags: func() *pflag.FlagSet { return newFlagSet("whoami", &options) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			application, err := authApp(&options)
			if err != nil {
				return err
			}
			token, err := application.auth.Token(ctx, application.config.ServerURL)
			if err != nil {
				return cli.FromCacheError(err)
			}
			if token == nil {
				fmt.Fprintf(streams.Err, "Not logged in to %s. Run 'casproxy auth login' to authenticate.\n", application.config.ServerURL)
				return &cli.ExitError{Code: 1}
			}

			result := whoami{ServerURL: application.config.ServerURL, Kind: string(token.Kind)}
			if token.Access != nil {
				result.Subject = token.Access.Subject
				result.Type = token.Access.Type
			}
			if expiry := token.ExpiresAt(); !expiry.IsZero() {
				result.ExpiresAt = expiry.UTC().Format(time.RFC3339)
			}
			return cli.WriteJSON(streams.Out, result)
		},
	}
}

func describeExpiry(token *auth.Token) string {
	if expiry := token.ExpiresAt(); !expiry.IsZero() {
		return fmt.Sprintf(" (access token expires %s)", expiry.UTC().Format(time.RFC3339))
	}
	return ""
}
