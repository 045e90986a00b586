// Package crawl implements a breadth-first, same-origin site crawler with an
// explicit frontier and a fixed page budget.
package crawl

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Normalize canonicalizes a URL for frontier bookkeeping. The policy is fixed
// for the whole run: fragments and query strings are stripped, and a trailing
// slash is trimmed except on the bare root path. Mixing policies within one
// run would let the same page into the queue twice.
func Normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	if c.Path != "/" {
		c.Path = strings.TrimSuffix(c.Path, "/")
	}
	return c.String()
}

// Origin returns the scheme+host authority a crawl is restricted to.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// Frontier is the crawler's working state: a visited set and a FIFO queue of
// discovered-but-unvisited pages, restricted to one origin and bounded by a
// page budget. Check-and-insert is atomic, so a bounded worker pool can share
// one Frontier without exceeding the budget or visiting a page twice.
type Frontier struct {
	mu      sync.Mutex
	seen    map[string]struct{} // queued or visited
	visited map[string]struct{}
	queue   []string
	origin  string
	budget  int
}

// NewFrontier creates a frontier seeded with one page. Every URI that enters
// the queue is in normalized form.
func NewFrontier(seed *url.URL, budget int) (*Frontier, error) {
	if seed.Scheme != "http" && seed.Scheme != "https" {
		return nil, fmt.Errorf("seed %q: scheme must be http or https", seed)
	}
	if budget <= 0 {
		return nil, fmt.Errorf("page budget %d must be positive", budget)
	}
	f := &Frontier{
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
		origin:  Origin(seed),
		budget:  budget,
	}
	norm := Normalize(seed)
	f.seen[norm] = struct{}{}
	f.queue = append(f.queue, norm)
	return f, nil
}

// Enqueue adds a discovered URI to the queue if it is same-origin and not
// already visited or queued. Returns true if the URI was added.
func (f *Frontier) Enqueue(u *url.URL) bool {
	if Origin(u) != f.origin {
		return false
	}
	norm := Normalize(u)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[norm]; ok {
		return false
	}
	f.seen[norm] = struct{}{}
	f.queue = append(f.queue, norm)
	return true
}

// Next pops the oldest queued URI and marks it visited, atomically. It
// returns ok=false when the queue is empty or the budget is exhausted;
// the caller must stop crawling then.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 || len(f.visited) >= f.budget {
		return "", false
	}
	uri := f.queue[0]
	f.queue = f.queue[1:]
	f.visited[uri] = struct{}{}
	return uri, true
}

// Visited returns a copy of the visited set.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.visited))
	for uri := range f.visited {
		out = append(out, uri)
	}
	return out
}

// Origin returns the authority this frontier is restricted to.
func (f *Frontier) Origin() string {
	return f.origin
}
