// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filename maps arbitrary identifiers (content ids, handles,
// server URLs) to single path components that cannot escape their
// directory.
package filename

import "strings"

// Sanitize replaces every rune outside [A-Za-z0-9._-] with '_'. A
// result that would be empty, "." or ".." gets a leading '_'.
func Sanitize(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for _, r := range name {
		if isSafe(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteByte('_')
		}
	}
	result := builder.String()
	switch result {
	case "", ".", "..":
		return "_" + result
	}
	return result
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
