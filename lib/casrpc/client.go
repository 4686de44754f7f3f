// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package casrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/cas"
	"github.com/bureau-foundation/casproxy/lib/codec"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for a response
// after writing the request. Handlers make remote calls with retries,
// so this is much longer than the server's own socket timeouts.
const responseReadTimeout = 5 * time.Minute

// maxResponseSize leaves room for the envelope around a maximal
// artifact.
const maxResponseSize = MaxRequestSize + 1<<20

// ServiceError is returned when the server responds with ok=false.
type ServiceError struct {
	Action  string
	Message string
	Kind    cacheerr.Kind
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// Unwrap exposes the failure kind, so errors.Is matches the
// lib/cacheerr sentinels.
func (e *ServiceError) Unwrap() error {
	if e.Kind == "" {
		return nil
	}
	return &cacheerr.Error{Kind: e.Kind, Message: e.Message}
}

// Client talks to a running bridge. Each call opens a new connection.
type Client struct {
	socketPath string
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Load fetches the artifact id.
func (c *Client) Load(ctx context.Context, id string) cas.LoadResult {
	var response LoadResponse
	if err := c.Call(ctx, ActionLoad, map[string]any{"id": id}, &response); err != nil {
		return cas.LoadResult{Err: err}
	}
	if response.Outcome == OutcomeNotFound {
		return cas.LoadResult{NotFound: true}
	}
	if response.Data == nil {
		response.Data = []byte{}
	}
	return cas.LoadResult{Data: response.Data}
}

// Save stores data and returns its content id.
func (c *Client) Save(ctx context.Context, data []byte) cas.SaveResult {
	var response SaveResponse
	if err := c.Call(ctx, ActionSave, map[string]any{"data": data}, &response); err != nil {
		return cas.SaveResult{Err: err}
	}
	return cas.SaveResult{ID: response.ID}
}

// PutValue stores entries under key.
func (c *Client) PutValue(ctx context.Context, key []byte, entries map[string][]byte) cas.PutResult {
	fields := map[string]any{"key": key, "entries": entries}
	if err := c.Call(ctx, ActionPutValue, fields, &PutValueResponse{}); err != nil {
		return cas.PutResult{Err: err}
	}
	return cas.PutResult{}
}

// GetValue fetches the entries stored under key.
func (c *Client) GetValue(ctx context.Context, key []byte) cas.GetResult {
	var response GetValueResponse
	if err := c.Call(ctx, ActionGetValue, map[string]any{"key": key}, &response); err != nil {
		return cas.GetResult{Err: err}
	}
	if response.Outcome == OutcomeKeyNotFound {
		return cas.GetResult{KeyNotFound: true}
	}
	return cas.GetResult{Entries: response.Entries}
}

// Status asks the bridge to describe itself.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var response StatusResponse
	if err := c.Call(ctx, ActionStatus, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Call sends one request and decodes the response data into result.
// The client adds the "action" field; fields must not contain it.
//
// A response with ok=false returns a *ServiceError. Connection and
// encoding failures are returned as transport errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return cacheerr.Wrap(cacheerr.KindTransport, fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err))
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Message: response.Error,
			Kind:    cacheerr.Kind(response.Kind),
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	// Close the connection early if ctx is cancelled mid-request.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, errors.Join(ctx.Err(), fmt.Errorf("writing request: %w", err))
	}

	// Half-close so the server sees EOF after the request.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, errors.Join(ctx.Err(), fmt.Errorf("reading response: %w", err))
	}
	return &response, nil
}
