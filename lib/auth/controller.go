// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/clock"
	"github.com/bureau-foundation/casproxy/lib/credential"
	"github.com/bureau-foundation/casproxy/lib/dedup"
	"github.com/bureau-foundation/casproxy/lib/filelock"
	"github.com/bureau-foundation/casproxy/lib/filename"
	"github.com/bureau-foundation/casproxy/lib/retry"
)

// Default bounds on waiting for another process's refresh.
const (
	DefaultLockPollInterval = 500 * time.Millisecond
	DefaultLockPollAttempts = 10
)

// TokenPair is the result of a refresh RPC.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	RefreshToken(ctx context.Context, serverURL, refreshToken string) (*TokenPair, error)
}

// Environment carries the CI token inputs. Populated by lib/config.
type Environment struct {
	CI bool

	// Token is CASPROXY_TOKEN.
	Token string

	// DeprecatedToken is CASPROXY_CONFIG_TOKEN.
	DeprecatedToken string
}

// Config holds the Controller's collaborators.
type Config struct {
	Credentials *credential.Store
	Refresher   Refresher

	// LockDir holds the cross-process refresh lock files, normally
	// <state>/auth-locks.
	LockDir string

	Environment Environment

	// RetryPolicy wraps the refresh RPC. Zero value means
	// retry.DefaultPolicy with the Controller's clock.
	RetryPolicy retry.Policy

	LockPollInterval time.Duration
	LockPollAttempts int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Controller resolves and refreshes tokens. Safe for concurrent use.
type Controller struct {
	credentials *credential.Store
	refresher   Refresher
	lockDir     string
	environment Environment
	retryPolicy retry.Policy
	pollEvery   time.Duration
	pollLimit   int
	clock       clock.Clock
	logger      *slog.Logger

	refreshes dedup.Group[*Token]
}

// NewController validates config and returns a Controller.
func NewController(config Config) (*Controller, error) {
	if config.Credentials == nil {
		return nil, errors.New("auth: Credentials store is required")
	}
	if config.Refresher == nil {
		return nil, errors.New("auth: Refresher is required")
	}
	if config.LockDir == "" {
		return nil, errors.New("auth: LockDir is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.LockPollInterval <= 0 {
		config.LockPollInterval = DefaultLockPollInterval
	}
	if config.LockPollAttempts <= 0 {
		config.LockPollAttempts = DefaultLockPollAttempts
	}
	policy := config.RetryPolicy
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	if policy.Clock == nil {
		policy.Clock = config.Clock
	}
	if policy.Retryable == nil {
		policy.Retryable = refreshRetryable
	}

	return &Controller{
		credentials: config.Credentials,
		refresher:   config.Refresher,
		lockDir:     config.LockDir,
		environment: config.Environment,
		retryPolicy: policy,
		pollEvery:   config.LockPollInterval,
		pollLimit:   config.LockPollAttempts,
		clock:       config.Clock,
		logger:      config.Logger,
	}, nil
}

// refreshRetryable retries transport and unexpected failures. A
// rejected refresh token will not become valid by asking again.
func refreshRetryable(err error) bool {
	switch cacheerr.KindOf(err) {
	case cacheerr.KindTransport, cacheerr.KindUnknown:
		return true
	default:
		return false
	}
}

// Token returns the token to use for serverURL, refreshing it first if
// it is near expiry. Returns nil with no error when no credentials are
// available.
func (c *Controller) Token(ctx context.Context, serverURL string) (*Token, error) {
	if c.environment.CI {
		return c.environmentToken(), nil
	}

	stored, err := c.credentials.Read(serverURL)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	token, err := c.classify(serverURL, stored)
	if err != nil {
		return nil, err
	}
	if token == nil || !c.needsRefresh(token) {
		return token, nil
	}

	if token.Refresh == nil {
		// Account-scoped and refresh-less tokens cannot be renewed.
		c.logger.Info("stored token expired and cannot be refreshed",
			"server_url", serverURL,
			"kind", token.Kind,
			"expires_at", token.ExpiresAt(),
		)
		if err := c.credentials.Delete(serverURL); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return c.Refresh(ctx, serverURL, false)
}

func (c *Controller) environmentToken() *Token {
	if c.environment.Token != "" {
		return &Token{Kind: KindProject, Secret: c.environment.Token}
	}
	if c.environment.DeprecatedToken != "" {
		c.logger.Warn("CASPROXY_CONFIG_TOKEN is deprecated; set CASPROXY_TOKEN instead")
		return &Token{Kind: KindProject, Secret: c.environment.DeprecatedToken}
	}
	return nil
}

// classify turns a stored record into a Token. A record holding a
// malformed JWT is deleted.
func (c *Controller) classify(serverURL string, stored *credential.Credentials) (*Token, error) {
	switch {
	case stored.AccessToken != "":
		access, err := ParseJWT(stored.AccessToken)
		if err != nil {
			return nil, c.discardInvalid(serverURL, err)
		}
		if stored.RefreshToken == "" {
			kind := KindUser
			if access.Type == "account" {
				kind = KindAccount
			}
			return &Token{Kind: kind, Access: access}, nil
		}
		refresh, err := ParseJWT(stored.RefreshToken)
		if err != nil {
			return nil, c.discardInvalid(serverURL, err)
		}
		return &Token{Kind: KindUser, Access: access, Refresh: refresh}, nil

	case stored.LegacyToken != "":
		c.logger.Warn("using a deprecated legacy token; run 'casproxy auth login' to upgrade",
			"server_url", serverURL,
		)
		return &Token{Kind: KindUser, Legacy: stored.LegacyToken}, nil

	case stored.RefreshToken != "":
		return nil, c.discardInvalid(serverURL, &InvalidTokenError{Reason: "refresh token without access token"})
	}
	return nil, nil
}

func (c *Controller) discardInvalid(serverURL string, cause error) error {
	c.logger.Warn("deleting invalid stored credentials", "server_url", serverURL, "error", cause)
	if err := c.credentials.Delete(serverURL); err != nil {
		return err
	}
	return &cacheerr.Error{
		Kind:    cacheerr.KindInvalidCredential,
		Message: "stored credentials for " + serverURL + " are malformed",
		Err:     cause,
	}
}

func (c *Controller) needsRefresh(token *Token) bool {
	return token.Access != nil && nearExpiry(token.Access, c.clock.Now())
}

// Refresh renews the stored token pair for serverURL. Unless force is
// set, a stored pair that is no longer near expiry (because another
// goroutine or process refreshed it) is returned without an RPC.
func (c *Controller) Refresh(ctx context.Context, serverURL string, force bool) (*Token, error) {
	return c.refreshes.Do(ctx, "token_"+serverURL, func(ctx context.Context) (*Token, error) {
		return c.refreshLocked(ctx, serverURL, force)
	})
}

// LockPath returns the cross-process refresh lock file for serverURL.
func (c *Controller) LockPath(serverURL string) string {
	return filepath.Join(c.lockDir, filename.Sanitize("token_"+serverURL)+".lock")
}

func (c *Controller) refreshLocked(ctx context.Context, serverURL string, force bool) (*Token, error) {
	lock, token, err := c.acquireRefreshLock(ctx, serverURL, force)
	if err != nil || token != nil {
		return token, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.logger.Warn("releasing refresh lock", "path", lock.Path(), "error", err)
		}
	}()

	// Another process may have finished a refresh between our last
	// read and taking the lock.
	stored, err := c.credentials.Read(serverURL)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, cacheerr.New(cacheerr.KindUnauthorized, "no stored credentials for %s", serverURL)
	}
	current, err := c.classify(serverURL, stored)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Refresh == nil {
		return nil, cacheerr.New(cacheerr.KindUnauthorized, "stored credentials for %s cannot be refreshed", serverURL)
	}
	if !force && !c.needsRefresh(current) {
		return current, nil
	}

	c.logger.Info("refreshing access token", "server_url", serverURL)
	pair, err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) (*TokenPair, error) {
		return c.refresher.RefreshToken(ctx, serverURL, stored.RefreshToken)
	})
	if err != nil {
		if cacheerr.KindOf(err) == cacheerr.KindTransport {
			return nil, &cacheerr.Error{
				Kind:    cacheerr.KindTransport,
				Message: "refreshing token for " + serverURL,
				Err:     err,
			}
		}
		c.logger.Warn("token refresh rejected; deleting stored credentials",
			"server_url", serverURL,
			"error", err,
		)
		if deleteErr := c.credentials.Delete(serverURL); deleteErr != nil {
			return nil, errors.Join(err, deleteErr)
		}
		return nil, &cacheerr.Error{
			Kind:    cacheerr.KindUnauthorized,
			Message: "refreshing token for " + serverURL + " failed",
			Err:     err,
		}
	}

	refreshed, err := c.parsePair(pair.AccessToken, pair.RefreshToken)
	if err != nil {
		if deleteErr := c.credentials.Delete(serverURL); deleteErr != nil {
			return nil, errors.Join(err, deleteErr)
		}
		return nil, &cacheerr.Error{
			Kind:    cacheerr.KindInvalidCredential,
			Message: "server returned a malformed token pair",
			Err:     err,
		}
	}
	if err := c.credentials.Save(serverURL, credential.Credentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// acquireRefreshLock takes the cross-process lock. While another
// process holds it, the stored record is polled; if that process
// leaves a fresh token behind, it is returned in place of a lock.
func (c *Controller) acquireRefreshLock(ctx context.Context, serverURL string, force bool) (*filelock.Lock, *Token, error) {
	path := c.LockPath(serverURL)
	for attempt := 1; ; attempt++ {
		lock, err := filelock.TryAcquire(path)
		if err == nil {
			return lock, nil, nil
		}
		if !errors.Is(err, filelock.ErrLocked) {
			return nil, nil, fmt.Errorf("acquiring refresh lock: %w", err)
		}

		if !force {
			if token := c.freshStoredToken(serverURL); token != nil {
				return nil, token, nil
			}
		}
		if attempt >= c.pollLimit {
			return nil, nil, cacheerr.New(cacheerr.KindUnauthorized,
				"timed out waiting for another process to refresh the token for %s", serverURL)
		}

		select {
		case <-c.clock.After(c.pollEvery):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (c *Controller) freshStoredToken(serverURL string) *Token {
	stored, err := c.credentials.Read(serverURL)
	if err != nil || stored == nil || stored.AccessToken == "" {
		return nil
	}
	access, err := ParseJWT(stored.AccessToken)
	if err != nil || nearExpiry(access, c.clock.Now()) {
		return nil
	}
	token := &Token{Kind: KindUser, Access: access}
	if access.Type == "account" {
		token.Kind = KindAccount
	}
	if stored.RefreshToken != "" {
		if refresh, err := ParseJWT(stored.RefreshToken); err == nil {
			token.Refresh = refresh
		}
	}
	return token
}

func (c *Controller) parsePair(accessToken, refreshToken string) (*Token, error) {
	access, err := ParseJWT(accessToken)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := ParseJWT(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &Token{Kind: KindUser, Access: access, Refresh: refresh}, nil
}

// Store validates and persists a token pair obtained from a login.
func (c *Controller) Store(serverURL, accessToken, refreshToken string) (*Token, error) {
	token, err := c.parsePair(accessToken, refreshToken)
	if err != nil {
		return nil, &cacheerr.Error{Kind: cacheerr.KindInvalidCredential, Message: "login tokens are malformed", Err: err}
	}
	if err := c.credentials.Save(serverURL, credential.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}); err != nil {
		return nil, err
	}
	return token, nil
}

// Logout deletes stored credentials for serverURL.
func (c *Controller) Logout(serverURL string) error {
	return c.credentials.Delete(serverURL)
}
