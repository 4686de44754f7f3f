// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
)

// JWT is the subset of a JSON Web Token the client needs. Signatures
// are not verified; the server does that.
type JWT struct {
	Raw       string
	ExpiresAt time.Time
	Subject   string

	// Type is the "type" (or "typ") claim. "account" marks an
	// account-scoped service token that cannot be refreshed.
	Type string
}

// InvalidTokenError reports a token that is not a well-formed JWT. It
// matches cacheerr.ErrInvalidCredential under errors.Is.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) Is(target error) bool {
	return target == cacheerr.ErrInvalidCredential
}

type jwtClaims struct {
	Expiry  *json.Number `json:"exp"`
	Subject string       `json:"sub"`
	Type    string       `json:"type"`
	Typ     string       `json:"typ"`
}

// ParseJWT decodes the payload of raw. The payload segment is
// base64url, with or without padding.
func ParseJWT(raw string) (*JWT, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, &InvalidTokenError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(segments))}
	}

	payload := segments[1]
	if remainder := len(payload) % 4; remainder != 0 {
		payload += strings.Repeat("=", 4-remainder)
	}
	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, &InvalidTokenError{Reason: "payload is not base64url", Err: err}
	}

	var claims jwtClaims
	decoder := json.NewDecoder(strings.NewReader(string(decoded)))
	decoder.UseNumber()
	if err := decoder.Decode(&claims); err != nil {
		return nil, &InvalidTokenError{Reason: "payload is not JSON", Err: err}
	}
	if claims.Expiry == nil {
		return nil, &InvalidTokenError{Reason: "missing exp claim"}
	}
	seconds, err := claims.Expiry.Float64()
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, &InvalidTokenError{Reason: "exp claim is not a number", Err: err}
	}
	if seconds >= math.MaxInt64 || seconds < math.MinInt64 {
		return nil, &InvalidTokenError{Reason: fmt.Sprintf("exp claim %s is out of range", claims.Expiry.String())}
	}

	whole, fraction := math.Modf(seconds)
	tokenType := claims.Type
	if tokenType == "" {
		tokenType = claims.Typ
	}
	return &JWT{
		Raw:       raw,
		ExpiresAt: time.Unix(int64(whole), int64(fraction*float64(time.Second))),
		Subject:   claims.Subject,
		Type:      tokenType,
	}, nil
}

// IsInvalidToken reports whether err is a JWT parse failure.
func IsInvalidToken(err error) bool {
	var invalid *InvalidTokenError
	return errors.As(err, &invalid)
}
