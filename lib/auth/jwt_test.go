// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
)

// testJWT builds an unsigned token whose payload is the given JSON.
func testJWT(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".signature"
}

func TestParseJWT(t *testing.T) {
	raw := testJWT(`{"exp":1767225600,"sub":"user-42","type":"account"}`)

	jwt, err := ParseJWT(raw)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if !jwt.ExpiresAt.Equal(time.Unix(1767225600, 0)) {
		t.Errorf("ExpiresAt = %v, want %v", jwt.ExpiresAt, time.Unix(1767225600, 0))
	}
	if jwt.Subject != "user-42" {
		t.Errorf("Subject = %q, want %q", jwt.Subject, "user-42")
	}
	if jwt.Type != "account" {
		t.Errorf("Type = %q, want %q", jwt.Type, "account")
	}
	if jwt.Raw != raw {
		t.Error("Raw does not round-trip")
	}
}

func TestParseJWTAcceptsPaddedAndTypClaim(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte(`{"exp":100,"typ":"access"}`))
	jwt, err := ParseJWT("header." + body + ".sig")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if jwt.Type != "access" {
		t.Errorf("Type = %q, want %q", jwt.Type, "access")
	}
}

func TestParseJWTPayloadLengths(t *testing.T) {
	// Payloads whose base64 length leaves each possible remainder.
	for _, payload := range []string{
		`{"exp":1}`,
		`{"exp":12}`,
		`{"exp":123}`,
		`{"exp":1234}`,
	} {
		if _, err := ParseJWT(testJWT(payload)); err != nil {
			t.Errorf("ParseJWT(%s): %v", payload, err)
		}
	}
}

func TestParseJWTRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"two_segments":  "abc.def",
		"four_segments": "a.b.c.d",
		"bad_base64":    "header.!!!.sig",
		"not_json":      "header." + base64.RawURLEncoding.EncodeToString([]byte("plain")) + ".sig",
		"missing_exp":   testJWT(`{"sub":"x"}`),
		"string_exp":    testJWT(`{"exp":"tomorrow"}`),
		"huge_exp":      testJWT(`{"exp":1e300}`),
		"negative_exp":  testJWT(`{"exp":-1e300}`),
		"beyond_int64":  testJWT(`{"exp":9223372036854775808}`),
		"beyond_float":  testJWT(`{"exp":1e400}`),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJWT(raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsInvalidToken(err) {
				t.Errorf("error %v is not *InvalidTokenError", err)
			}
			if !errors.Is(err, cacheerr.ErrInvalidCredential) {
				t.Errorf("error %v does not match ErrInvalidCredential", err)
			}
		})
	}
}
