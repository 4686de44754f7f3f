// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/casproxy/lib/auth"
)

type endpointsResponse struct {
	Endpoints []string `json:"endpoints"`
}

// CacheEndpoints returns the candidate cache endpoint URLs the server
// advertises for accountHandle.
func (client *Client) CacheEndpoints(ctx context.Context, serverURL, token, accountHandle string) ([]string, error) {
	target, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	target = target.JoinPath("api", "cache", "endpoints")
	if accountHandle != "" {
		target.RawQuery = url.Values{"account_handle": {accountHandle}}.Encode()
	}

	var response endpointsResponse
	if err := client.doJSON(ctx, call{method: http.MethodGet, url: target.String(), token: token}, &response); err != nil {
		return nil, fmt.Errorf("discovering cache endpoints: %w", err)
	}
	return response.Endpoints, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges refreshToken for a new pair. Implements
// auth.Refresher.
func (client *Client) RefreshToken(ctx context.Context, serverURL, refreshToken string) (*auth.TokenPair, error) {
	target, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	target = target.JoinPath("api", "auth", "refresh_token")

	c, err := jsonCall(http.MethodPost, target.String(), "", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	var response refreshResponse
	if err := client.doJSON(ctx, c, &response); err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return &auth.TokenPair{AccessToken: response.AccessToken, RefreshToken: response.RefreshToken}, nil
}
