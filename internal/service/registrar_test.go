package service

import (
	"strings"
	"testing"
)

func TestStripWhoisComments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"registry banner dropped",
			strings.Join([]string{
				"% This is the ISNIC Whois server.",
				"%",
				"# Rights restricted by copyright.",
				"",
				"",
				"domain:       vedur.is",
				"registrant:   VI74-IS",
				"",
				"",
				"address:      Bustadavegur 9",
			}, "\n"),
			strings.Join([]string{
				"domain:       vedur.is",
				"registrant:   VI74-IS",
				"",
				"address:      Bustadavegur 9",
			}, "\n"),
		},
		{"blank runs collapsed", "a\n\n\n\nb", "a\n\nb"},
		{"only comments", "% one\n# two", ""},
		{"clean input unchanged", "domain: vedur.is\nregistrar: ISNIC", "domain: vedur.is\nregistrar: ISNIC"},
		{"indented comment", "  % note\nname: x", "name: x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripWhoisComments(tc.raw); got != tc.want {
				t.Errorf("stripWhoisComments =\n%q\nwant\n%q", got, tc.want)
			}
		})
	}
}

func TestRegistrarUnresolvableDomain(t *testing.T) {
	// The lookup may also fail because the test box has no network access;
	// either way the contract is an empty string, never an error.
	if got := Registrar("this.is.not.a.real.domain.at.all.nonexistent"); got != "" {
		t.Errorf("Registrar = %q, want \"\"", got)
	}
}
