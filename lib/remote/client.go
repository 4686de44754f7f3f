// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/clock"
	"github.com/bureau-foundation/casproxy/lib/netutil"
	"github.com/bureau-foundation/casproxy/lib/version"
)

// Request and response header names.
const (
	HeaderRequestID   = "x-request-id"
	HeaderVersion     = "x-casproxy-version"
	HeaderReleaseDate = "x-casproxy-release-date"
	HeaderWarnings    = "x-casproxy-warnings"
)

// Config holds configuration for creating a Client.
type Config struct {
	// HTTPClient is used for all requests. Defaults to
	// http.DefaultClient. Request timeouts belong here.
	HTTPClient *http.Client

	// Version and ReleaseDate are sent on every request. Default to
	// lib/version.
	Version     string
	ReleaseDate string

	// Clock times latency probes. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives server warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to the remote cache service. Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	version     string
	releaseDate string
	clock       clock.Clock
	logger      *slog.Logger

	warningsMu sync.Mutex
	warned     map[string]struct{}
}

// NewClient creates a Client from config.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clientVersion := config.Version
	if clientVersion == "" {
		clientVersion = version.Short()
	}
	releaseDate := config.ReleaseDate
	if releaseDate == "" {
		releaseDate = version.ReleaseDate
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  httpClient,
		version:     clientVersion,
		releaseDate: releaseDate,
		clock:       clk,
		logger:      logger,
		warned:      make(map[string]struct{}),
	}
}

// call describes one HTTP exchange.
type call struct {
	method      string
	url         string
	token       string
	body        []byte
	contentType string
}

// jsonCall returns a call whose body is the JSON encoding of value.
func jsonCall(method, url, token string, value any) (call, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return call{}, fmt.Errorf("encoding request body: %w", err)
	}
	return call{method: method, url: url, token: token, body: encoded, contentType: "application/json"}, nil
}

// do executes c and returns the response body. Non-2xx responses
// become *cacheerr.Error; network failures are KindTransport.
func (client *Client) do(ctx context.Context, c call) ([]byte, error) {
	response, err := client.send(ctx, c)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &cacheerr.Error{
			Kind:    cacheerr.KindTransport,
			Message: fmt.Sprintf("reading %s %s response", c.method, c.url),
			Err:     err,
		}
	}
	return body, nil
}

// doJSON executes c and decodes the JSON response body into v.
func (client *Client) doJSON(ctx context.Context, c call, v any) error {
	response, err := client.send(ctx, c)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := netutil.DecodeResponse(response.Body, v); err != nil {
		return &cacheerr.Error{
			Kind:    cacheerr.KindUnknown,
			Message: fmt.Sprintf("decoding %s %s response", c.method, c.url),
			Err:     err,
		}
	}
	return nil
}

// send executes c and classifies non-2xx statuses. The caller closes
// the body of a successful response.
func (client *Client) send(ctx context.Context, c call) (*http.Response, error) {
	response, err := client.doRaw(ctx, c)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, cacheerr.FromStatus(response.StatusCode, netutil.ErrorBody(response.Body))
	}
	return response, nil
}

// doRaw sends c with the standard headers. The caller closes the
// response body.
func (client *Client) doRaw(ctx context.Context, c call) (*http.Response, error) {
	var bodyReader io.Reader
	if c.body != nil {
		bodyReader = bytes.NewReader(c.body)
	}
	request, err := http.NewRequestWithContext(ctx, c.method, c.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.contentType != "" {
		request.Header.Set("Content-Type", c.contentType)
	}
	request.Header.Set(HeaderRequestID, uuid.NewString())
	request.Header.Set(HeaderVersion, client.version)
	request.Header.Set(HeaderReleaseDate, client.releaseDate)
	request.Header.Set("User-Agent", "casproxy/"+client.version)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, &cacheerr.Error{
			Kind: cacheerr.KindTransport,
			Err:  fmt.Errorf("%s %s: %w", c.method, c.url, err),
		}
	}
	client.logWarnings(response.Header)
	return response, nil
}

// logWarnings logs each server warning the first time it is seen. The
// header value is base64 of a JSON array of strings.
func (client *Client) logWarnings(header http.Header) {
	encoded := header.Get(HeaderWarnings)
	if encoded == "" {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		client.logger.Debug("ignoring undecodable server warnings header", "error", err)
		return
	}
	var warnings []string
	if err := json.Unmarshal(decoded, &warnings); err != nil {
		client.logger.Debug("ignoring malformed server warnings", "error", err)
		return
	}

	client.warningsMu.Lock()
	defer client.warningsMu.Unlock()
	for _, warning := range warnings {
		if _, seen := client.warned[warning]; seen {
			continue
		}
		client.warned[warning] = struct{}{}
		client.logger.Warn("cache server warning", "message", warning)
	}
}
