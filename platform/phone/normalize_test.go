package phone

import (
	"strings"
	"testing"
)

func TestCanonicalizeFormats(t *testing.T) {
	c := NewCanonicalizer("NG", "234")
	want := "+2348012345678"

	inputs := []string{
		"08012345678",
		"2348012345678",
		"+2348012345678",
		"+234 801 234 5678",
		"0801-234-5678",
		"(0801) 234 5678",
		" 2348012345678 ",
	}
	for _, in := range inputs {
		if got := c.Canonicalize(in); got != want {
			t.Fatalf("Canonicalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	c := NewCanonicalizer("NG", "234")
	inputs := []string{
		"08012345678",
		"2348012345678",
		"+44 20 7946 0958",
		"0044 20 7946 0958",
		"12345",
		"+1 (415) 555-2671",
		"abc 0703 000 0000",
	}
	for _, in := range inputs {
		once := c.Canonicalize(in)
		twice := c.Canonicalize(once)
		if once != twice {
			t.Fatalf("expected idempotent canonicalization for %q: %q then %q", in, once, twice)
		}
		if !strings.HasPrefix(once, "+") {
			t.Fatalf("expected leading plus for %q, got %q", in, once)
		}
	}
}

func TestCanonicalizeEmpty(t *testing.T) {
	c := NewCanonicalizer("NG", "234")
	if got := c.Canonicalize("  --  "); got != "" {
		t.Fatalf("expected empty result for address without digits, got %q", got)
	}
}

func TestChannelForm(t *testing.T) {
	if got := ChannelForm("+2348012345678"); got != "2348012345678" {
		t.Fatalf("expected plus stripped, got %q", got)
	}
}
