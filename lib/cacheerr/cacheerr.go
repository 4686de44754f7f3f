// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cacheerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by what the user (or the calling build
// system) can do about it.
type Kind string

const (
	// KindTransport is a network or I/O failure. Retryable.
	KindTransport Kind = "transport"

	// KindNotFound is the absence of a blob or key. Load and GetValue
	// report it as an outcome rather than an error.
	KindNotFound Kind = "not_found"

	// KindUnauthorized means the credential is missing, expired, or
	// was rejected. The user must re-authenticate.
	KindUnauthorized Kind = "unauthorized"

	// KindForbidden means the credential is valid but lacks access to
	// the project.
	KindForbidden Kind = "forbidden"

	// KindPaymentRequired means the account needs billing attention.
	KindPaymentRequired Kind = "payment_required"

	// KindInvalidCredential means a stored token could not be parsed.
	KindInvalidCredential Kind = "invalid_credential"

	// KindNoEndpointsAvailable means discovery returned no cache
	// endpoints.
	KindNoEndpointsAvailable Kind = "no_endpoints_available"

	// KindNoReachableEndpoints means every discovered endpoint failed
	// its latency probe.
	KindNoReachableEndpoints Kind = "no_reachable_endpoints"

	// KindUnknown is an unexpected remote status. Treated as an
	// integration bug worth reporting upstream.
	KindUnknown Kind = "unknown"
)

// Sentinel errors, one per Kind. An *Error matches the sentinel of its
// Kind under errors.Is.
var (
	ErrTransport            = &Error{Kind: KindTransport}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrPaymentRequired      = &Error{Kind: KindPaymentRequired}
	ErrInvalidCredential    = &Error{Kind: KindInvalidCredential}
	ErrNoEndpointsAvailable = &Error{Kind: KindNoEndpointsAvailable}
	ErrNoReachableEndpoints = &Error{Kind: KindNoReachableEndpoints}
	ErrUnknown              = &Error{Kind: KindUnknown}
)

// Error is a classified failure. Status is the HTTP status when the
// failure came from a remote response, zero otherwise.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// New returns an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. The message defaults to err's text.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.Status)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind. This makes
// every classified error match its sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
// Context cancellation and deadline errors are transport failures;
// anything else unclassified is KindUnknown. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransport
	}
	return KindUnknown
}

// FromStatus classifies a non-2xx HTTP status. The message is the
// server's description, typically the "message" field of its JSON
// error body.
func FromStatus(status int, message string) *Error {
	kind := KindUnknown
	switch status {
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusPaymentRequired:
		kind = KindPaymentRequired
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// Describe returns the human-readable description reported to the
// native build system and printed by the CLI. Server-provided messages
// are preferred when present.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if !errors.As(err, &classified) {
		return err.Error()
	}
	switch classified.Kind {
	case KindUnauthorized:
		return "You must be logged in to do this. Run 'casproxy auth login' to authenticate."
	case KindInvalidCredential:
		return "The stored credentials are invalid. Run 'casproxy auth login' to authenticate again."
	case KindNoEndpointsAvailable, KindNoReachableEndpoints:
		return "No remote cache is available; building without the remote cache. (" + string(classified.Kind) + ")"
	}
	if classified.Message != "" {
		return classified.Message
	}
	return classified.Error()
}
