// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/auth"
	"github.com/bureau-foundation/casproxy/lib/cas"
	"github.com/bureau-foundation/casproxy/lib/compress"
	"github.com/bureau-foundation/casproxy/lib/config"
	"github.com/bureau-foundation/casproxy/lib/credential"
	"github.com/bureau-foundation/casproxy/lib/endpoint"
	"github.com/bureau-foundation/casproxy/lib/metadata"
	"github.com/bureau-foundation/casproxy/lib/remote"
)

// commonOptions are the flags shared by every command that talks to
// the cache or reads local state.
type commonOptions struct {
	configPath string
	serverURL  string
	fullHandle string
}

func (o *commonOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&o.serverURL, "server-url", "", "cache service URL (overrides server_url)")
	flagSet.StringVar(&o.fullHandle, "full-handle", "", "account/project handle (overrides full_handle)")
}

func newFlagSet(name string, options *commonOptions) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	options.register(flagSet)
	return flagSet
}

// load reads and validates configuration, applying flag overrides.
func (o *commonOptions) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("loading config: %w", err)
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
	}
	if o.fullHandle != "" {
		cfg.FullHandle = o.fullHandle
	}
	if err := cfg.Validate(); err != nil {
		toolErr := cli.Validation("invalid configuration: %w", err)
		if cfg.ServerURL == "" {
			toolErr = toolErr.WithHint("Set server_url in the file named by $" + config.EnvConfig + " or pass --server-url.")
		}
		return nil, toolErr
	}
	return cfg, nil
}

// handle parses the configured full handle as a validation error.
func handle(cfg *config.Config) (remote.FullHandle, error) {
	parsed, err := cfg.Handle()
	if err != nil {
		return remote.FullHandle{}, cli.Validation("%w", err)
	}
	return parsed, nil
}

// app wires the lib/ components from one configuration.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	remote   *remote.Client
	auth     *auth.Controller
	metadata *metadata.Store
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	client := remote.NewClient(remote.Config{
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		Logger:     logger,
	})
	controller, err := auth.NewController(auth.Config{
		Credentials: credential.NewStore(cfg.Paths.ConfigDir, logger),
		Refresher:   client,
		LockDir:     cfg.AuthLockDir(),
		Environment: cfg.Env,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth controller: %w", err)
	}
	return &app{
		config:   cfg,
		logger:   logger,
		remote:   client,
		auth:     controller,
		metadata: metadata.NewStore(cfg.Paths.StateDir, logger),
	}, nil
}

// token returns the bearer string for discovery, or "" when no
// credentials are available.
func (a *app) token(ctx context.Context, serverURL string) (string, error) {
	token, err := a.auth.Token(ctx, serverURL)
	if err != nil || token == nil {
		return "", err
	}
	return token.Value(), nil
}

func (a *app) endpoints() *endpoint.Store {
	var discoverer endpoint.Discoverer = &endpoint.RemoteDiscoverer{Client: a.remote, Token: a.token}
	if a.config.CacheURL != "" {
		discoverer = endpoint.Pinned(a.config.CacheURL)
	}
	prober := &endpoint.RemoteProber{
		Client:  a.remote,
		Timeout: a.config.ProbeTimeout,
		Logger:  a.logger,
	}
	return endpoint.NewStore(discoverer, prober, a.logger)
}

// service builds the cache bridge for handle.
func (a *app) service(handle remote.FullHandle) (*cas.Service, error) {
	algorithm, err := a.config.Algorithm()
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	compressor, err := compress.New(algorithm)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	return cas.NewService(cas.Config{
		ServerURL:  a.config.ServerURL,
		Handle:     handle,
		Endpoints:  a.endpoints(),
		Tokens:     a.auth,
		Remote:     a.remote,
		Compressor: compressor,
		Metadata:   a.metadata,
		Logger:     a.logger,
	})
}

// commandLogger returns the CLI logger at the configured level.
func commandLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return cli.NewCommandLogger(level)
}
