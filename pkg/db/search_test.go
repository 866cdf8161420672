package db

import "testing"

func TestContainsPattern(t *testing.T) {
	cases := map[string]string{
		"Tape":     "%tape%",
		"  50%  ":  `%50\%%`,
		"a_b":      `%a\_b%`,
		`back\sl`:  `%back\\sl%`,
		"":         "%%",
	}
	for in, want := range cases {
		if got := ContainsPattern(in); got != want {
			t.Fatalf("ContainsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
