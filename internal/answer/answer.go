// Package answer orchestrates the knowledge sources behind one chat turn:
// the pre-built vector index is consulted first, the live site crawl runs
// only when the index yields nothing relevant, and the admitted passages are
// composed into a grounded generation prompt.
package answer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/log"
	"github.com/siteguide/siteguide/internal/score"
)

// DefaultMaxSources caps the source passages returned with an answer.
const DefaultMaxSources = 5

// ErrEmptyQuestion indicates a question that is empty after sanitization.
var ErrEmptyQuestion = errors.New("empty question")

// Turn is one completed exchange of the conversation, oldest first in a
// history slice.
type Turn struct {
	Human     string
	Assistant string
}

// Response is the result of one answered question.
type Response struct {
	// Text is the generated answer.
	Text string

	// Sources are the passages the answer was grounded on, best score
	// first, at most MaxSources entries.
	Sources []chunk.Passage

	// Fallback reports whether the live crawl supplied the passages.
	Fallback bool
}

// Index is the pre-built passage index consulted before any crawl.
type Index interface {
	// Search returns candidate passages for the query.
	Search(ctx context.Context, query string) ([]chunk.Passage, error)
}

// Collector gathers candidate passages live from the configured sites. It is
// only invoked when the index comes up short.
type Collector interface {
	Collect(ctx context.Context) ([]chunk.Passage, error)
}

// Generator produces model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config tunes the orchestration.
type Config struct {
	// Scorer ranks passages against the question.
	Scorer score.Scorer

	// Filter controls which scored passages count as relevant.
	Filter score.FilterOptions

	// MinRelevant is the fallback trigger: the crawl runs when fewer than
	// this many passages pass the filter. Zero means 1.
	MinRelevant int

	// MaxSources caps the passages attached to a response.
	// Zero means DefaultMaxSources.
	MaxSources int

	// CacheTTL is how long one crawl's passages are reused before the sites
	// are crawled again. Zero disables reuse.
	CacheTTL time.Duration
}

func (c Config) minRelevant() int {
	if c.MinRelevant < 1 {
		return 1
	}
	return c.MinRelevant
}

func (c Config) maxSources() int {
	if c.MaxSources < 1 {
		return DefaultMaxSources
	}
	return c.MaxSources
}

// Orchestrator answers questions. Safe for concurrent use; the crawl cache is
// the only mutable state and is guarded by a mutex.
type Orchestrator struct {
	index     Index
	collector Collector
	gen       Generator
	cfg       Config
	logger    log.Logger

	mu       sync.Mutex
	cached   []chunk.Passage
	cachedAt time.Time
}

// New creates an Orchestrator.
func New(index Index, collector Collector, gen Generator, cfg Config, logger log.Logger) (*Orchestrator, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if collector == nil {
		return nil, fmt.Errorf("collector is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Orchestrator{index: index, collector: collector, gen: gen, cfg: cfg, logger: logger}, nil
}

// Sanitize flattens a question to a single trimmed line. Questions are
// embedded verbatim in prompts, so stray newlines must not open new
// transcript roles.
func Sanitize(question string) string {
	question = strings.ReplaceAll(question, "\r", " ")
	question = strings.ReplaceAll(question, "\n", " ")
	return strings.TrimSpace(question)
}

// Answer resolves one question against the index, falling back to the live
// crawl when the index has nothing relevant, and generates a grounded answer.
//
// Any stage failure fails the whole request; there is no degraded answer
// path, by request-level error contract.
func (o *Orchestrator) Answer(ctx context.Context, question string, history []Turn) (*Response, error) {
	question = Sanitize(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	// With history present the question may lean on earlier turns
	// ("what about their pricing?"), so it is rewritten standalone before
	// retrieval. An empty rewrite falls back to the original question.
	query := question
	if len(history) > 0 {
		rewritten, err := o.gen.Generate(ctx, rewritePrompt(question, history))
		if err != nil {
			return nil, fmt.Errorf("rewriting question: %w", err)
		}
		if s := Sanitize(rewritten); s != "" {
			query = s
		}
	}

	indexed, err := o.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	relevant := o.cfg.Scorer.Filter(query, indexed, o.cfg.Filter)
	fallback := len(relevant) < o.cfg.minRelevant()
	if fallback {
		o.logger.Info("index has no relevant passages, crawling fallback sites",
			"query", query, "indexed", len(indexed), "relevant", len(relevant))
		crawled, err := o.collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("crawling fallback sites: %w", err)
		}
		relevant = o.cfg.Scorer.Filter(query, crawled, o.cfg.Filter)
	}

	// Best-scored passages first; stable so equal scores keep source order.
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Score > relevant[j].Score
	})

	contents := make([]string, len(relevant))
	passages := make([]chunk.Passage, len(relevant))
	for i, r := range relevant {
		contents[i] = r.Passage.Content
		passages[i] = r.Passage
	}

	text, err := o.gen.Generate(ctx, answerPrompt(query, strings.Join(contents, "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if max := o.cfg.maxSources(); len(passages) > max {
		passages = passages[:max]
	}
	o.logger.Debug("answered question",
		"query", query, "sources", len(passages), "fallback", fallback)
	return &Response{Text: text, Sources: passages, Fallback: fallback}, nil
}

// collect returns crawl passages, reusing the previous run's result while it
// is fresh. Concurrent callers serialize here so the sites are never crawled
// twice at once.
func (o *Orchestrator) collect(ctx context.Context) ([]chunk.Passage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.CacheTTL > 0 && o.cached != nil && time.Since(o.cachedAt) < o.cfg.CacheTTL {
		o.logger.Debug("reusing cached crawl passages",
			"passages", len(o.cached), "age", time.Since(o.cachedAt))
		return o.cached, nil
	}

	passages, err := o.collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if o.cfg.CacheTTL > 0 {
		o.cached = passages
		o.cachedAt = time.Now()
	}
	return passages, nil
}
