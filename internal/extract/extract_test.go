package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/models"
)

type stubFetcher struct {
	html string
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (models.Result, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return models.Result{}, s.err
	}
	return models.Result{URL: url, HTML: s.html, Status: 200}, nil
}

const story = "The city council approved a new transit plan on Tuesday after months of public hearings and debate."
const story2 = "Officials said construction of the first light rail segment would begin next spring and finish by 2028."

func page(body string) string {
	return "<html><head><title>t</title></head><body>" + body + "</body></html>"
}

func TestExtractKeepsParagraphsAndDropsChrome(t *testing.T) {
	html := page(`
		<nav><p>Home News Sports Weather and other navigation links</p></nav>
		<header><p>Breaking: this header text should never appear anywhere</p></header>
		<article>
			<p>` + story + `</p>
			<p>short</p>
			<div class="ad-banner"><p>Buy one get one free on all mattresses this week only</p></div>
			<p>` + story2 + `</p>
		</article>
		<script>var x = "<p>not a paragraph at all, just script</p>";</script>
		<footer><p>Copyright notice and legal small print for the site</p></footer>`)

	e := New(&stubFetcher{html: html}, DefaultOptions(), nil)
	got, ok := e.Extract(context.Background(), "https://news.example.com/a")
	if !ok {
		t.Fatalf("expected page to be accepted")
	}
	want := story + " " + story2
	if got != want {
		t.Fatalf("unexpected content:\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractFetchFailure(t *testing.T) {
	e := New(&stubFetcher{err: errors.New("connection refused")}, DefaultOptions(), nil)
	got, ok := e.Extract(context.Background(), "https://down.example.com")
	if ok || got != "" {
		t.Fatalf("expected rejection, got %q %v", got, ok)
	}
}

func TestExtractRejectsThinContent(t *testing.T) {
	cases := map[string]string{
		"empty page":      page(""),
		"short paragraph": page("<p>Only a single modest paragraph lives here.</p>"),
		// long enough in characters but under the word threshold
		"few long words": page("<p>" + strings.Repeat("Supercalifragilistic ", 7) + "</p>"),
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			if got, ok := New(&stubFetcher{html: html}, DefaultOptions(), nil).Extract(context.Background(), "u"); ok {
				t.Fatalf("expected rejection, got %q", got)
			}
		})
	}
}

func TestExtractCapsParagraphs(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "<p>Paragraph number %02d carries enough words to count.</p>", i)
	}
	got, ok := New(&stubFetcher{html: page(b.String())}, DefaultOptions(), nil).Extract(context.Background(), "u")
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if !strings.Contains(got, "number 29") || strings.Contains(got, "number 30") {
		t.Fatalf("expected exactly 30 paragraphs, got %q", got)
	}
}

func TestStripBoilerplateTruncates(t *testing.T) {
	cases := map[string]string{
		"Real reporting here. Sign up for our Newsletter to stay informed daily.":    "Real reporting here. Sign up for our",
		"Story text continues. Read the e-Edition for more.":                         "Story text continues. Read the",
		"Story text. Today’s edition is available now.":                              "Story text.",
		"No promos in this sentence at all.":                                         "No promos in this sentence at all.",
		"Plain facts first. Get the latest headlines delivered to your email inbox.": "Plain facts first.",
	}
	for in, want := range cases {
		if got := StripBoilerplate(in); got != want {
			t.Fatalf("StripBoilerplate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanStripsPromoFromJoinedText(t *testing.T) {
	html := page("<p>" + story + "</p><p>" + story2 + "</p><p>Subscribe now for unlimited access to every story.</p>")
	got := Clean(html, "https://x", DefaultOptions())
	if got != story+" "+story2 {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestCleanDecodesEntities(t *testing.T) {
	html := page("<p>Residents&#39; groups said the plan&amp;budget were fair &quot;on balance&quot; overall.</p>")
	got := Clean(html, "https://x", DefaultOptions())
	want := `Residents' groups said the plan&budget were fair "on balance" overall.`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanFallsBackToReadability(t *testing.T) {
	var b strings.Builder
	b.WriteString("<article>")
	for i := 0; i < 4; i++ {
		b.WriteString("<div>" + story + " " + story2 + "</div>")
	}
	b.WriteString("</article>")
	body := b.String()
	got := Clean(page(body), "https://news.example.com/story", DefaultOptions())
	if !strings.Contains(got, "transit plan") {
		t.Fatalf("expected readability text, got %q", got)
	}
}

func TestAccept(t *testing.T) {
	opts := DefaultOptions()
	if Accept(strings.Repeat("a", 99), opts) {
		t.Fatalf("99 chars must be rejected")
	}
	if !Accept(story+" "+story2, opts) {
		t.Fatalf("two full sentences must be accepted")
	}
}
