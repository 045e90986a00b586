package crawl

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/siteguide/siteguide/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// siteFetcher serves a static link graph and records which URIs were fetched.
type siteFetcher struct {
	mu      sync.Mutex
	graph   map[string][]string
	fetched []string
	fail    map[string]bool
}

func (f *siteFetcher) Links(_ context.Context, uri string) ([]*url.URL, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, uri)
	f.mu.Unlock()

	if f.fail[uri] {
		return nil, fmt.Errorf("render failed for %s", uri)
	}
	var links []*url.URL
	for _, href := range f.graph[uri] {
		u, err := url.Parse(href)
		if err != nil {
			return nil, err
		}
		links = append(links, u)
	}
	return links, nil
}

func newSite() *siteFetcher {
	return &siteFetcher{
		graph: map[string][]string{
			"https://example.com/": {
				"https://example.com/about",
				"https://example.com/services",
				"https://example.com/contact",
				"https://other.org/external",
			},
			"https://example.com/about":    {"https://example.com/team", "https://example.com/"},
			"https://example.com/services": {"https://example.com/pricing"},
			"https://example.com/contact":  {},
			"https://example.com/team":     {"https://example.com/careers"},
			"https://example.com/pricing":  {},
			"https://example.com/careers":  {},
		},
		fail: map[string]bool{},
	}
}

func newCrawler(t *testing.T, f Fetcher, cfg Config) *Crawler {
	t.Helper()
	c, err := New(f, cfg, log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestRun_RespectsBudget(t *testing.T) {
	c := newCrawler(t, newSite(), Config{})

	visited, err := c.Run(context.Background(), "https://example.com/", 3)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(visited) != 3 {
		t.Errorf("visited %d pages, want exactly 3", len(visited))
	}
	for _, uri := range visited {
		if !strings.HasPrefix(uri, "https://example.com") {
			t.Errorf("visited off-origin URI %q", uri)
		}
	}
}

func TestRun_StaysSameOrigin(t *testing.T) {
	f := newSite()
	c := newCrawler(t, f, Config{})

	visited, err := c.Run(context.Background(), "https://example.com/", 50)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, uri := range append(visited, f.fetched...) {
		if !strings.HasPrefix(uri, "https://example.com") {
			t.Errorf("off-origin URI reached: %q", uri)
		}
	}
	// All 7 same-origin pages, no more.
	if len(visited) != 7 {
		t.Errorf("visited %d pages, want 7", len(visited))
	}
}

func TestRun_NoDuplicateVisits(t *testing.T) {
	f := newSite()
	c := newCrawler(t, f, Config{})

	if _, err := c.Run(context.Background(), "https://example.com/", 50); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	seen := make(map[string]int)
	for _, uri := range f.fetched {
		seen[uri]++
	}
	for uri, n := range seen {
		if n > 1 {
			t.Errorf("URI %q fetched %d times", uri, n)
		}
	}
}

func TestRun_PageFailureDoesNotAbort(t *testing.T) {
	f := newSite()
	f.fail["https://example.com/about"] = true
	c := newCrawler(t, f, Config{})

	visited, err := c.Run(context.Background(), "https://example.com/", 50)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// The failed page stays visited (no retry) but its links are lost:
	// team and careers are only reachable through /about.
	sort.Strings(visited)
	want := []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/contact",
		"https://example.com/pricing",
		"https://example.com/services",
	}
	if len(visited) != len(want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}

func TestRun_ConcurrentWorkersKeepInvariants(t *testing.T) {
	f := newSite()
	c := newCrawler(t, f, Config{Workers: 4})

	visited, err := c.Run(context.Background(), "https://example.com/", 5)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(visited) > 5 {
		t.Errorf("budget exceeded: visited %d pages", len(visited))
	}
	seen := make(map[string]int)
	for _, uri := range f.fetched {
		seen[uri]++
	}
	for uri, n := range seen {
		if n > 1 {
			t.Errorf("URI %q fetched %d times under concurrency", uri, n)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page?utm=x", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/a/b/?q=1#f", "https://example.com/a/b"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.in, err)
		}
		if got := Normalize(u); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrontier_RejectsOffOriginAndDuplicates(t *testing.T) {
	seed, _ := url.Parse("https://example.com/")
	f, err := NewFrontier(seed, 10)
	if err != nil {
		t.Fatalf("NewFrontier() error: %v", err)
	}

	page, _ := url.Parse("https://example.com/page")
	if !f.Enqueue(page) {
		t.Error("first enqueue of /page rejected")
	}
	if f.Enqueue(page) {
		t.Error("duplicate enqueue of /page accepted")
	}
	withFragment, _ := url.Parse("https://example.com/page#top")
	if f.Enqueue(withFragment) {
		t.Error("fragment variant of /page accepted as new")
	}
	external, _ := url.Parse("https://evil.example.org/page")
	if f.Enqueue(external) {
		t.Error("off-origin URI accepted")
	}
}

func TestNewFrontier_Validation(t *testing.T) {
	seed, _ := url.Parse("ftp://example.com/")
	if _, err := NewFrontier(seed, 10); err == nil {
		t.Error("non-http seed accepted")
	}
	httpSeed, _ := url.Parse("https://example.com/")
	if _, err := NewFrontier(httpSeed, 0); err == nil {
		t.Error("zero budget accepted")
	}
}
