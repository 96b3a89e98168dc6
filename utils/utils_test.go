package utils

import "testing"

func TestCollapseSpace(t *testing.T) {
	got := CollapseSpace("  a\n\tb   c ")
	if got != "a b c" {
		t.Fatalf("unexpected: %q", got)
	}
	if WordCount(got) != 3 {
		t.Fatalf("expected 3 words, got %d", WordCount(got))
	}
}

func TestStr(t *testing.T) {
	if Str(nil) != "" {
		t.Fatalf("nil should render empty")
	}
	if Str(12) != "12" {
		t.Fatalf("unexpected: %q", Str(12))
	}
}
