// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filename

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"test/cas:id~with/special:chars", "test_cas_id_with_special_chars"},
		{"ABCDEF0123456789", "ABCDEF0123456789"},
		{"tuist/ios-app", "tuist_ios-app"},
		{"token_https://cache.example.com:8443", "token_https___cache.example.com_8443"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"white space", "white_space"},
		{"héllo", "h_llo"},
		{"", "_"},
		{".", "_."},
		{"..", "_.."},
	}
	for _, test := range tests {
		if got := Sanitize(test.input); got != test.want {
			t.Errorf("Sanitize(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}
