// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
)

func TestFromCacheError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"unauthorized", cacheerr.New(cacheerr.KindUnauthorized, "expired"), CategoryForbidden},
		{"invalid credential", fmt.Errorf("reading: %w", cacheerr.ErrInvalidCredential), CategoryForbidden},
		{"payment", cacheerr.FromStatus(402, "plan limit"), CategoryForbidden},
		{"not found", cacheerr.ErrNotFound, CategoryNotFound},
		{"no endpoints", cacheerr.ErrNoReachableEndpoints, CategoryTransient},
		{"plain", errors.New("disk full"), CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var toolErr *ToolError
			if !errors.As(FromCacheError(test.err), &toolErr) {
				t.Fatalf("FromCacheError(%v) is not a *ToolError", test.err)
			}
			if toolErr.Category != test.want {
				t.Errorf("Category = %q, want %q", toolErr.Category, test.want)
			}
		})
	}
}

func TestFromCacheErrorPassesThrough(t *testing.T) {
	original := Validation("bad input")
	if got := FromCacheError(original); got != error(original) {
		t.Errorf("FromCacheError changed an existing ToolError: %v", got)
	}
	if FromCacheError(nil) != nil {
		t.Error("FromCacheError(nil) should be nil")
	}
}

func TestToolErrorUnwrap(t *testing.T) {
	err := Internal("saving: %w", cacheerr.ErrTransport)
	if !errors.Is(err, cacheerr.ErrTransport) {
		t.Error("ToolError should unwrap to its cause")
	}
}
