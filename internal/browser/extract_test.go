package browser

import (
	"net/url"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractContent_PrefersMainRegion(t *testing.T) {
	filler := strings.Repeat("Relevant service descriptions live here. ", 10)
	html := `<html><body>
		<nav>Home About Contact</nav>
		<main><p>` + filler + `</p></main>
		<footer>Copyright</footer>
	</body></html>`

	got := ExtractContent(html, mustParse(t, "https://example.com/services"), 50)
	if !strings.Contains(got, "Relevant service descriptions") {
		t.Errorf("main content missing from extraction: %q", got)
	}
}

func TestExtractContent_FallsBackToBody(t *testing.T) {
	html := `<html><body><div class="odd-layout">Short page with no content landmarks but enough words to matter.</div></body></html>`

	got := ExtractContent(html, mustParse(t, "https://example.com/"), 500)
	if !strings.Contains(got, "no content landmarks") {
		t.Errorf("body fallback missing text: %q", got)
	}
}

func TestExtractContent_SelectorOrder(t *testing.T) {
	long := strings.Repeat("article text ", 30)
	html := `<html><body>
		<main>tiny</main>
		<article>` + long + `</article>
	</body></html>`

	// <main> is too short, so <article> must win over the body fallback.
	got := ExtractContent(html, mustParse(t, "https://example.com/post"), 100)
	if !strings.Contains(got, "article text") {
		t.Errorf("expected article content, got %q", got)
	}
	if got == "tiny" {
		t.Error("short <main> should not have been selected")
	}
}

func TestExtractLinks_ResolvesAgainstPageLocation(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="pricing">Pricing</a>
		<a href="https://other.org/x">External</a>
		<a href="mailto:hi@example.com">Mail</a>
		<a href="javascript:void(0)">JS</a>
	</body></html>`

	// Page redirected to a subdirectory; relative links resolve against it.
	links, err := ExtractLinks(html, mustParse(t, "https://example.com/docs/intro"))
	if err != nil {
		t.Fatalf("ExtractLinks() error: %v", err)
	}

	want := map[string]bool{
		"https://example.com/about":        false,
		"https://example.com/docs/pricing": false,
		"https://other.org/x":              false,
	}
	if len(links) != len(want) {
		t.Fatalf("ExtractLinks() = %d links, want %d: %v", len(links), len(want), links)
	}
	for _, l := range links {
		if _, ok := want[l.String()]; !ok {
			t.Errorf("unexpected link %q", l)
		}
		want[l.String()] = true
	}
	for u, seen := range want {
		if !seen {
			t.Errorf("missing link %q", u)
		}
	}
}
