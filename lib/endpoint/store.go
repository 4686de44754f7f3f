// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/dedup"
)

// Discoverer returns candidate endpoint URLs for an account.
type Discoverer interface {
	Candidates(ctx context.Context, serverURL, accountHandle string) ([]string, error)
}

// Prober measures the round-trip latency to candidate. A nil result
// means the candidate is unreachable.
type Prober interface {
	Latency(ctx context.Context, candidate *url.URL) *time.Duration
}

// Candidate is a measured endpoint.
type Candidate struct {
	URL     *url.URL
	Latency *time.Duration
}

// Store resolves and memoizes cache endpoints. Safe for concurrent use.
type Store struct {
	discoverer Discoverer
	prober     Prober
	logger     *slog.Logger
	selected   dedup.Memo[*url.URL]
}

// NewStore returns a Store.
func NewStore(discoverer Discoverer, prober Prober, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{discoverer: discoverer, prober: prober, logger: logger}
}

// CacheURL returns the endpoint for (serverURL, accountHandle),
// discovering and probing on first use.
func (s *Store) CacheURL(ctx context.Context, serverURL, accountHandle string) (*url.URL, error) {
	key := serverURL + "\x00" + accountHandle
	return s.selected.Get(ctx, key, func(ctx context.Context) (*url.URL, error) {
		return s.resolve(ctx, serverURL, accountHandle)
	})
}

func (s *Store) resolve(ctx context.Context, serverURL, accountHandle string) (*url.URL, error) {
	raw, err := s.discoverer.Candidates(ctx, serverURL, accountHandle)
	if err != nil {
		return nil, err
	}

	candidates := make([]*url.URL, 0, len(raw))
	for _, value := range raw {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			s.logger.Warn("ignoring malformed cache endpoint", "endpoint", value, "error", err)
			continue
		}
		candidates = append(candidates, parsed)
	}

	switch len(candidates) {
	case 0:
		return nil, cacheerr.New(cacheerr.KindNoEndpointsAvailable,
			"server %s advertised no cache endpoints", serverURL)
	case 1:
		return candidates[0], nil
	}

	measured := s.measure(ctx, candidates)
	best := Fastest(measured)
	if best == nil {
		return nil, cacheerr.New(cacheerr.KindNoReachableEndpoints,
			"none of the %d cache endpoints advertised by %s responded", len(candidates), serverURL)
	}
	s.logger.Info("selected cache endpoint",
		"endpoint", best.URL.String(),
		"latency", *best.Latency,
		"candidates", len(candidates),
	)
	return best.URL, nil
}

func (s *Store) measure(ctx context.Context, candidates []*url.URL) []Candidate {
	measured := make([]Candidate, len(candidates))
	var group errgroup.Group
	for index, candidate := range candidates {
		measured[index].URL = candidate
		group.Go(func() error {
			measured[index].Latency = s.prober.Latency(ctx, candidate)
			return nil
		})
	}
	group.Wait()
	return measured
}

// Fastest returns the candidate with the lowest finite latency, the
// earliest one on ties, or nil if none is reachable.
func Fastest(candidates []Candidate) *Candidate {
	var best *Candidate
	for index := range candidates {
		candidate := &candidates[index]
		if candidate.Latency == nil {
			continue
		}
		if best == nil || *candidate.Latency < *best.Latency {
			best = candidate
		}
	}
	return best
}

// Pinned is a Discoverer that always returns one configured endpoint.
type Pinned string

// Candidates returns the pinned endpoint.
func (p Pinned) Candidates(context.Context, string, string) ([]string, error) {
	if p == "" {
		return nil, fmt.Errorf("pinned cache endpoint is empty")
	}
	return []string{string(p)}, nil
}
