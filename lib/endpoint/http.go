// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/bureau-foundation/casproxy/lib/remote"
	"github.com/bureau-foundation/casproxy/lib/retry"
)

// TokenFunc returns the bearer token for discovery calls. An empty
// string sends the request unauthenticated.
type TokenFunc func(ctx context.Context, serverURL string) (string, error)

// RemoteDiscoverer asks the server's discovery API.
type RemoteDiscoverer struct {
	Client *remote.Client
	Token  TokenFunc
}

// Candidates implements Discoverer.
func (d *RemoteDiscoverer) Candidates(ctx context.Context, serverURL, accountHandle string) ([]string, error) {
	var token string
	if d.Token != nil {
		var err error
		if token, err = d.Token(ctx, serverURL); err != nil {
			return nil, err
		}
	}
	return d.Client.CacheEndpoints(ctx, serverURL, token, accountHandle)
}

// RemoteProber probes GET <candidate>/up with bounded retries.
type RemoteProber struct {
	Client *remote.Client

	// Timeout bounds each probe attempt. Zero means no bound beyond
	// the HTTP client's own.
	Timeout time.Duration

	// Policy is the retry policy. Zero value means retry.DefaultPolicy.
	Policy retry.Policy

	Logger *slog.Logger
}

// Latency implements Prober.
func (p *RemoteProber) Latency(ctx context.Context, candidate *url.URL) *time.Duration {
	policy := p.Policy
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	latency, err := retry.Do(ctx, policy, func(ctx context.Context) (time.Duration, error) {
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		return p.Client.Probe(ctx, candidate)
	})
	if err != nil {
		if p.Logger != nil {
			p.Logger.Debug("cache endpoint unreachable", "endpoint", candidate.String(), "error", err)
		}
		return nil
	}
	return &latency
}
