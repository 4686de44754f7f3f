// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
)

// Target identifies where and as whom a cache call is made.
type Target struct {
	// Endpoint is the selected cache endpoint base URL.
	Endpoint *url.URL

	// Token is the bearer credential. Empty sends no Authorization.
	Token string

	Handle FullHandle
}

func (target Target) url(elements ...string) string {
	u := target.Endpoint.JoinPath(elements...)
	u.RawQuery = url.Values{
		"account_handle": {target.Handle.Account},
		"project_handle": {target.Handle.Project},
	}.Encode()
	return u.String()
}

// objectURL is url with id as the final path segment. Ids are limited
// to unreserved URL characters so that an id can never add segments or
// be cleaned into a different route.
func (target Target) objectURL(id string, elements ...string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return target.url(append(elements, id)...), nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." {
		return cacheerr.New(cacheerr.KindUnknown, "invalid cache id %q", id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '~':
		default:
			return cacheerr.New(cacheerr.KindUnknown, "invalid cache id %q", id)
		}
	}
	return nil
}

// LoadCAS downloads the stored payload for id. A missing blob returns
// an error matching cacheerr.ErrNotFound.
func (client *Client) LoadCAS(ctx context.Context, target Target, id string) ([]byte, error) {
	address, err := target.objectURL(id, "api", "cache", "cas")
	if err != nil {
		return nil, err
	}
	body, err := client.do(ctx, call{
		method: http.MethodGet,
		url:    address,
		token:  target.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}
	return body, nil
}

// CASExists reports whether the endpoint holds a blob for id.
func (client *Client) CASExists(ctx context.Context, target Target, id string) (bool, error) {
	address, err := target.objectURL(id, "api", "cache", "cas")
	if err != nil {
		return false, err
	}
	_, err = client.do(ctx, call{
		method: http.MethodHead,
		url:    address,
		token:  target.Token,
	})
	if errors.Is(err, cacheerr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", id, err)
	}
	return true, nil
}

// SaveCAS uploads payload under id.
func (client *Client) SaveCAS(ctx context.Context, target Target, id string, payload []byte) error {
	address, err := target.objectURL(id, "api", "cache", "cas")
	if err != nil {
		return err
	}
	_, err = client.do(ctx, call{
		method:      http.MethodPost,
		url:         address,
		token:       target.Token,
		body:        payload,
		contentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", id, err)
	}
	return nil
}

// KeyValueEntries maps entry names to base64-encoded values.
type KeyValueEntries map[string]string

type putValueRequest struct {
	CASID   string          `json:"cas_id"`
	Entries KeyValueEntries `json:"entries"`
}

type getValueResponse struct {
	Entries KeyValueEntries `json:"entries"`
}

// PutValue stores entries under the key id casID.
func (client *Client) PutValue(ctx context.Context, target Target, casID string, entries KeyValueEntries) error {
	if err := checkID(casID); err != nil {
		return err
	}
	c, err := jsonCall(http.MethodPut, target.url("api", "cache", "keyvalue"), target.Token,
		putValueRequest{CASID: casID, Entries: entries})
	if err != nil {
		return err
	}
	if _, err := client.do(ctx, c); err != nil {
		return fmt.Errorf("storing key %s: %w", casID, err)
	}
	return nil
}

// GetValue returns the entries stored under casID. A missing key
// returns an error matching cacheerr.ErrNotFound.
func (client *Client) GetValue(ctx context.Context, target Target, casID string) (KeyValueEntries, error) {
	address, err := target.objectURL(casID, "api", "cache", "keyvalue")
	if err != nil {
		return nil, err
	}
	var response getValueResponse
	if err := client.doJSON(ctx, call{method: http.MethodGet, url: address, token: target.Token}, &response); err != nil {
		return nil, fmt.Errorf("reading key %s: %w", casID, err)
	}
	return response.Entries, nil
}

// Probe measures one round trip to endpoint's /up route. Any failure,
// including a non-2xx status, is an error.
func (client *Client) Probe(ctx context.Context, endpoint *url.URL) (time.Duration, error) {
	start := client.clock.Now()
	if _, err := client.do(ctx, call{method: http.MethodGet, url: endpoint.JoinPath("up").String()}); err != nil {
		return 0, fmt.Errorf("probing %s: %w", endpoint, err)
	}
	return client.clock.Since(start), nil
}
