// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import "time"

// ExpiryMargin is how close to expiry an access token may be before
// it is refreshed instead of used.
const ExpiryMargin = 30 * time.Second

// Kind identifies where a token came from and how it is renewed.
type Kind string

const (
	// KindProject is a project-scoped secret from the CI environment.
	KindProject Kind = "project"

	// KindUser is an interactive login: an access/refresh JWT pair or
	// a legacy flat token.
	KindUser Kind = "user"

	// KindAccount is an account-scoped service JWT with no refresh
	// token.
	KindAccount Kind = "account"
)

// Token is a usable credential.
type Token struct {
	Kind Kind

	// Secret is set for KindProject.
	Secret string

	// Access is set for KindAccount and for KindUser JWT logins.
	Access *JWT

	// Refresh is set for refreshable KindUser logins.
	Refresh *JWT

	// Legacy is set for KindUser logins that predate JWTs.
	Legacy string
}

// Value returns the bearer string to send.
func (t *Token) Value() string {
	switch {
	case t.Secret != "":
		return t.Secret
	case t.Access != nil:
		return t.Access.Raw
	default:
		return t.Legacy
	}
}

// ExpiresAt returns the access token expiry, or the zero time if the
// token has none.
func (t *Token) ExpiresAt() time.Time {
	if t.Access == nil {
		return time.Time{}
	}
	return t.Access.ExpiresAt
}

// nearExpiry reports whether jwt expires within ExpiryMargin of now.
func nearExpiry(jwt *JWT, now time.Time) bool {
	return jwt.ExpiresAt.Sub(now) < ExpiryMargin
}
