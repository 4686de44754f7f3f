// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"ab", "abc", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"logout", "lgout", 1},
		{"metadata", "metdata", 1},
	}
	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if got := levenshtein(test.b, test.a); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
			}
		})
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.String("server-url", "", "")
	flagSet.String("config", "", "")
	flagSet.StringP("output", "o", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--server-ulr", "x"}, "--server-url"},
		{[]string{"--confg=a.yaml"}, "--config"},
		{[]string{"--config", "a", "--completely-different"}, ""},
		{[]string{"positional"}, ""},
		{[]string{"-o", "out.bin", "--outptu", "x"}, "--output"},
		{[]string{"--server-rul=https://cache.example.com"}, "--server-url"},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
