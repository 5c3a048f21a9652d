// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	for _, test := range []struct {
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
		{"inspect", "inspcet", 2},
		{"export", "exprot", 2},
	} {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if reverse := levenshtein(test.b, test.a); reverse != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, not symmetric", test.b, test.a, reverse)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.Bool("verify", false, "")
	flagSet.BoolP("json", "j", false, "")

	for _, tt := range []struct {
		args []string
		want string
	}{
		{[]string{"--verfy"}, "--verify"},
		{[]string{"--verify", "--jsn", "file"}, "--json"},
		{[]string{"-j", "--compression-level"}, ""},
		{[]string{"file", "--", "--verfy"}, ""},
	} {
		if got := suggestFlag(tt.args, flagSet); got != tt.want {
			t.Errorf("suggestFlag(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
