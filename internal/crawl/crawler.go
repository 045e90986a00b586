package crawl

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/siteguide/siteguide/internal/log"
)

// Fetcher fetches one page through the rendering browser and reports its
// outbound links. Links must be resolved against the page's own final
// location, not the seed, since pages may redirect.
type Fetcher interface {
	// Links returns the absolute URLs of the anchors on the rendered page.
	Links(ctx context.Context, uri string) ([]*url.URL, error)
}

// Config controls one crawl run.
type Config struct {
	// Workers is the number of concurrent page fetches. Zero or one means
	// sequential crawling.
	Workers int

	// RequestsPerSecond throttles page fetches across all workers.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Crawler discovers same-origin pages breadth-first, bounded by a page
// budget. Per-page failures are logged and absorbed: the failing URI stays
// marked visited so it is never retried, and the crawl continues.
type Crawler struct {
	fetcher Fetcher
	cfg     Config
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates a Crawler.
func New(fetcher Fetcher, cfg Config, logger log.Logger) (*Crawler, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, limiter: limiter, logger: logger}, nil
}

// Run crawls from seed until the budget is exhausted or no pages remain, and
// returns the normalized URIs visited. The result never exceeds pageBudget
// entries and never contains a URI outside the seed's origin.
func (c *Crawler) Run(ctx context.Context, seed string, pageBudget int) ([]string, error) {
	seedURL, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("parsing seed %q: %w", seed, err)
	}
	frontier, err := NewFrontier(seedURL, pageBudget)
	if err != nil {
		return nil, err
	}

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	// Workers drain the frontier in waves: each wave visits every page the
	// frontier will hand out right now, and enqueued discoveries feed the
	// next wave. The wave boundary keeps traversal breadth-first even with
	// concurrent fetches.
	for {
		batch := make([]string, 0, workers)
		for len(batch) < workers {
			uri, ok := frontier.Next()
			if !ok {
				break
			}
			batch = append(batch, uri)
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, uri := range batch {
			g.Go(func() error {
				return c.visit(gctx, frontier, uri)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	visited := frontier.Visited()
	c.logger.Info("crawl finished", "seed", seed, "visited", len(visited), "budget", pageBudget)
	return visited, nil
}

// visit fetches one page and enqueues its same-origin links. Fetch errors are
// absorbed; only context cancellation aborts the crawl.
func (c *Crawler) visit(ctx context.Context, frontier *Frontier, uri string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	links, err := c.fetcher.Links(ctx, uri)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The URI is already marked visited by Next, so it will not be
		// retried. Reduced coverage, not a crawl failure.
		c.logger.Warn("page fetch failed, skipping", "uri", uri, "error", err)
		return nil
	}

	for _, link := range links {
		frontier.Enqueue(link)
	}
	return nil
}
