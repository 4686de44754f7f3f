// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
)

// ErrorCategory classifies command failures so scripts can decide
// between fixing input, logging in, and retrying.
type ErrorCategory string

const (
	// CategoryValidation: missing arguments, unparseable values, bad
	// configuration. Fix the input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a referenced artifact or record does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden: missing or rejected credentials.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryTransient: network failure or unreachable cache. Back off
	// and retry.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything unexpected.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error returned by commands. It wraps the
// underlying error, so errors.Is and errors.As see the full chain.
type ToolError struct {
	Category ErrorCategory
	Err      error

	// Hint is printed after the error message when non-empty.
	Hint string
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// WithHint returns e with an actionable hint attached.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// FromCacheError categorizes err by its lib/cacheerr kind, using the
// kind's user-facing description as the message. Already categorized
// errors are returned unchanged.
func FromCacheError(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}

	message := errors.New(cacheerr.Describe(err))
	switch cacheerr.KindOf(err) {
	case cacheerr.KindUnauthorized, cacheerr.KindInvalidCredential,
		cacheerr.KindForbidden, cacheerr.KindPaymentRequired:
		return &ToolError{Category: CategoryForbidden, Err: message}
	case cacheerr.KindNotFound:
		return &ToolError{Category: CategoryNotFound, Err: message}
	case cacheerr.KindTransport, cacheerr.KindNoEndpointsAvailable, cacheerr.KindNoReachableEndpoints:
		return &ToolError{Category: CategoryTransient, Err: message}
	}
	return &ToolError{Category: CategoryInternal, Err: err}
}
