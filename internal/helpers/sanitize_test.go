package helpers

import "testing"

func TestPlainText_RemovesTagsAndScripts(t *testing.T) {
	input := `<p>Hello <strong>world</strong><script>alert('x')</script></p>`
	got := PlainText(input)
	want := "Hello world"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlainText_DecodesEntities(t *testing.T) {
	got := PlainText(`Tom's "quoted" <b>text</b> & more`)
	want := `Tom's "quoted" text & more`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlainText_Empty(t *testing.T) {
	if got := PlainText("   "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
