// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/remote"
	"github.com/bureau-foundation/casproxy/lib/remote/remotetest"
	"github.com/bureau-foundation/casproxy/lib/retry"
)

type staticDiscoverer struct {
	candidates []string
	err        error
	calls      atomic.Int32
}

func (d *staticDiscoverer) Candidates(context.Context, string, string) ([]string, error) {
	d.calls.Add(1)
	return d.candidates, d.err
}

// tableProber reports fixed latencies by host; hosts absent from the
// table are unreachable.
type tableProber struct {
	mu        sync.Mutex
	latencies map[string]time.Duration
	probed    []string
}

func (p *tableProber) Latency(_ context.Context, candidate *url.URL) *time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, candidate.Host)
	latency, ok := p.latencies[candidate.Host]
	if !ok {
		return nil
	}
	return &latency
}

func (p *tableProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.probed)
}

func TestSingleCandidateIsNotProbed(t *testing.T) {
	discoverer := &staticDiscoverer{candidates: []string{"https://only.example.com"}}
	prober := &tableProber{}
	store := NewStore(discoverer, prober, nil)

	got, err := store.CacheURL(context.Background(), "https://server", "acme")
	if err != nil {
		t.Fatalf("CacheURL: %v", err)
	}
	if got.String() != "https://only.example.com" {
		t.Errorf("CacheURL = %s, want https://only.example.com", got)
	}
	if count := prober.probeCount(); count != 0 {
		t.Errorf("prober called %d times, want 0", count)
	}
}

func TestLowestLatencyWins(t *testing.T) {
	discoverer := &staticDiscoverer{candidates: []string{
		"https://slow.example.com",
		"https://fast.example.com",
		"https://medium.example.com",
	}}
	prober := &tableProber{latencies: map[string]time.Duration{
		"slow.example.com":   500 * time.Millisecond,
		"fast.example.com":   50 * time.Millisecond,
		"medium.example.com": 200 * time.Millisecond,
	}}
	store := NewStore(discoverer, prober, nil)

	got, err := store.CacheURL(context.Background(), "https://server", "acme")
	if err != nil {
		t.Fatalf("CacheURL: %v", err)
	}
	if got.Host != "fast.example.com" {
		t.Errorf("CacheURL = %s, want fast.example.com", got)
	}
	if count := prober.probeCount(); count != 3 {
		t.Errorf("prober called %d times, want 3", count)
	}
}

func TestAllUnreachable(t *testing.T) {
	discoverer := &staticDiscoverer{candidates: []string{"https://a.example.com", "https://b.example.com"}}
	store := NewStore(discoverer, &tableProber{}, nil)

	_, err := store.CacheURL(context.Background(), "https://server", "acme")
	if !errors.Is(err, cacheerr.ErrNoReachableEndpoints) {
		t.Errorf("CacheURL error = %v, want ErrNoReachableEndpoints", err)
	}
}

func TestNoCandidates(t *testing.T) {
	store := NewStore(&staticDiscoverer{}, &tableProber{}, nil)

	_, err := store.CacheURL(context.Background(), "https://server", "acme")
	if !errors.Is(err, cacheerr.ErrNoEndpointsAvailable) {
		t.Errorf("CacheURL error = %v, want ErrNoEndpointsAvailable", err)
	}
}

func TestMalformedCandidatesAreSkipped(t *testing.T) {
	discoverer := &staticDiscoverer{candidates: []string{"::not a url", "relative/path", "https://ok.example.com"}}
	prober := &tableProber{}
	store := NewStore(discoverer, prober, nil)

	got, err := store.CacheURL(context.Background(), "https://server", "acme")
	if err != nil {
		t.Fatalf("CacheURL: %v", err)
	}
	if got.Host != "ok.example.com" || prober.probeCount() != 0 {
		t.Errorf("CacheURL = %s after %d probes, want ok.example.com without probing", got, prober.probeCount())
	}
}

func TestSelectionIsMemoizedPerServerAndAccount(t *testing.T) {
	discoverer := &staticDiscoverer{candidates: []string{"https://only.example.com"}}
	store := NewStore(discoverer, &tableProber{}, nil)
	ctx := context.Background()

	for range 3 {
		if _, err := store.CacheURL(ctx, "https://server", "acme"); err != nil {
			t.Fatalf("CacheURL: %v", err)
		}
	}
	if calls := discoverer.calls.Load(); calls != 1 {
		t.Errorf("discovery calls = %d, want 1", calls)
	}

	if _, err := store.CacheURL(ctx, "https://server", "other-account"); err != nil {
		t.Fatalf("CacheURL: %v", err)
	}
	if calls := discoverer.calls.Load(); calls != 2 {
		t.Errorf("discovery calls after new account = %d, want 2", calls)
	}
}

func TestDiscoveryFailureIsNotMemoized(t *testing.T) {
	discoverer := &staticDiscoverer{err: cacheerr.New(cacheerr.KindTransport, "offline")}
	store := NewStore(discoverer, &tableProber{}, nil)
	ctx := context.Background()

	if _, err := store.CacheURL(ctx, "https://server", "acme"); !errors.Is(err, cacheerr.ErrTransport) {
		t.Fatalf("CacheURL error = %v, want ErrTransport", err)
	}
	discoverer.err = nil
	discoverer.candidates = []string{"https://only.example.com"}
	if _, err := store.CacheURL(ctx, "https://server", "acme"); err != nil {
		t.Errorf("CacheURL after recovery: %v", err)
	}
}

func TestFastestPrefersFirstOnTies(t *testing.T) {
	latency := 10 * time.Millisecond
	first, _ := url.Parse("https://first")
	second, _ := url.Parse("https://second")
	best := Fastest([]Candidate{{URL: first, Latency: &latency}, {URL: second, Latency: &latency}})
	if best == nil || best.URL != first {
		t.Errorf("Fastest = %+v, want first", best)
	}
	if Fastest([]Candidate{{URL: first}}) != nil {
		t.Error("Fastest of unreachable candidates should be nil")
	}
}

func TestRemoteDiscovererAndProber(t *testing.T) {
	reachable := remotetest.NewServer(t)
	unreachable := remotetest.NewServer(t)
	unreachable.FailRoute(remotetest.RouteUp, http.StatusServiceUnavailable)
	reachable.SetEndpoints([]string{unreachable.URL, reachable.URL})

	client := remote.NewClient(remote.Config{})
	store := NewStore(
		&RemoteDiscoverer{Client: client, Token: func(context.Context, string) (string, error) { return "secret", nil }},
		&RemoteProber{Client: client, Policy: retry.Policy{Attempts: 2, BaseDelay: time.Millisecond}},
		nil,
	)

	got, err := store.CacheURL(context.Background(), reachable.URL, "acme")
	if err != nil {
		t.Fatalf("CacheURL: %v", err)
	}
	if got.String() != reachable.URL {
		t.Errorf("CacheURL = %s, want %s", got, reachable.URL)
	}
	if probes := len(unreachable.Requests("/up")); probes != 2 {
		t.Errorf("unreachable endpoint probed %d times, want 2 (retried)", probes)
	}
	if auth := reachable.Requests("/api/cache/endpoints")[0].Header.Get("Authorization"); auth != "Bearer secret" {
		t.Errorf("discovery Authorization = %q", auth)
	}
}

func TestPinned(t *testing.T) {
	store := NewStore(Pinned("https://pinned.example.com"), &tableProber{}, nil)
	got, err := store.CacheURL(context.Background(), "https://server", "acme")
	if err != nil || got.Host != "pinned.example.com" {
		t.Errorf("CacheURL = %v, %v; want pinned endpoint", got, err)
	}
}
