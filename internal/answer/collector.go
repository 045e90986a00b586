package answer

import (
	"context"
	"fmt"

	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/crawl"
	"github.com/siteguide/siteguide/internal/log"
)

// PageSource renders pages for one collection run: it feeds the crawler with
// links and yields each page's primary text. browser.Browser satisfies it.
type PageSource interface {
	crawl.Fetcher
	ExtractText(ctx context.Context, uri string) (string, error)
	Close() error
}

// PageSourceFactory opens a fresh PageSource. A headless browser is expensive
// to keep around, so one is launched per collection run and closed when the
// run ends.
type PageSourceFactory func() (PageSource, error)

// SiteCollector implements Collector by crawling the configured seed sites
// breadth-first within the page budget and chunking every page's text.
type SiteCollector struct {
	newSource PageSourceFactory
	seeds     []string
	budget    int
	crawlCfg  crawl.Config
	chunkCfg  chunk.Config
	logger    log.Logger
}

// NewSiteCollector creates a collector over the seed sites.
func NewSiteCollector(newSource PageSourceFactory, seeds []string, budget int, crawlCfg crawl.Config, chunkCfg chunk.Config, logger log.Logger) (*SiteCollector, error) {
	if newSource == nil {
		return nil, fmt.Errorf("page source factory is required")
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one seed is required")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("page budget %d must be positive", budget)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &SiteCollector{
		newSource: newSource,
		seeds:     seeds,
		budget:    budget,
		crawlCfg:  crawlCfg,
		chunkCfg:  chunkCfg,
		logger:    logger,
	}, nil
}

// Collect crawls every seed and returns the chunked page texts. Pages whose
// text extraction fails are skipped; only context cancellation or a failure
// to start the run aborts it.
func (c *SiteCollector) Collect(ctx context.Context) (_ []chunk.Passage, retErr error) {
	source, err := c.newSource()
	if err != nil {
		return nil, fmt.Errorf("opening page source: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil && retErr == nil {
			c.logger.Warn("closing page source", "error", err)
		}
	}()

	crawler, err := crawl.New(source, c.crawlCfg, c.logger)
	if err != nil {
		return nil, err
	}

	var passages []chunk.Passage
	// Seeds on the same origin reach overlapping pages; each run has its own
	// frontier, so dedupe across seeds here.
	seen := make(map[string]bool)
	for _, seed := range c.seeds {
		visited, err := crawler.Run(ctx, seed, c.budget)
		if err != nil {
			return nil, fmt.Errorf("crawling %s: %w", seed, err)
		}
		for _, uri := range visited {
			if seen[uri] {
				continue
			}
			seen[uri] = true
			text, err := source.ExtractText(ctx, uri)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Warn("text extraction failed, skipping page", "uri", uri, "error", err)
				continue
			}
			ps, err := chunk.Split(text, uri, chunk.KindWeb, c.chunkCfg)
			if err != nil {
				return nil, err
			}
			passages = append(passages, ps...)
		}
	}
	c.logger.Info("collected site passages", "seeds", len(c.seeds), "passages", len(passages))
	return passages, nil
}
