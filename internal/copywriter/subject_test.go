//go:build !integration

package copywriter

import (
	"regexp"
	"testing"
)

func TestNormalizeSubject(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"Re: Fwd: Quick idea for Acme", "Quick idea for Acme"},
		{"[EXTERNAL] [SPAM] Growth at Acme", "Growth at Acme"},
		{`Subject: "Scaling Acme's onboarding"`, "Scaling Acme's onboarding"},
		{"1. Faster hiring at Acme", "Faster hiring at Acme"},
		{"- RE - FW: hello   there", "hello there"},
		{"  spaced \t out  ", "spaced out"},
		{"“Rep ramp at Acme”", "Rep ramp at Acme"},
		{"[EXTERNAL] Re: [SUSPICIOUS] fwd- Pipeline ideas", "Pipeline ideas"},
		{"Refund policy review", "Refund policy review"},
		{"[Partner newsletter from the marketing automation team] Quick idea", "Quick idea"},
		{"[] Quick idea", "Quick idea"},
		{"**Re: Ideas**", "Ideas"},
		{"__Onboarding at Acme__", "Onboarding at Acme"},
		{"*Fwd: \"Pipeline\"*", "Pipeline"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeSubject(tc.in); got != tc.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeSubject_HygieneAndIdempotence(t *testing.T) {
	t.Parallel()
	bad := regexp.MustCompile(`(?i)^(re|fw|fwd)[:\-]`)
	inputs := []string{
		"RE:RE:RE: hello",
		"fw:[EXTERNAL] hi",
		"[a][b][c] Re- x",
		"* 2) 'Re: Fwd: subject: next steps'",
		"Subject: Subject: Re: deal",
		`"[EXT] Re: quoted"`,
		"[Partner newsletter from the marketing automation team] Quick idea",
		"[] Quick idea",
		"**Re: Ideas**",
	}
	for _, in := range inputs {
		once := NormalizeSubject(in)
		if bad.MatchString(once) {
			t.Fatalf("reply prefix left in %q -> %q", in, once)
		}
		if len(once) > 0 && once[0] == '[' {
			t.Fatalf("bracket tag left in %q -> %q", in, once)
		}
		if twice := NormalizeSubject(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
