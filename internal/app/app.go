// Package app wires the application together: configuration, logging, the
// Genkit instance, the PostgreSQL pool, and the answering pipeline. Commands
// build an App and pick the pieces they need.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siteguide/siteguide/db"
	"github.com/siteguide/siteguide/internal/answer"
	"github.com/siteguide/siteguide/internal/browser"
	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/config"
	"github.com/siteguide/siteguide/internal/crawl"
	"github.com/siteguide/siteguide/internal/ingest"
	"github.com/siteguide/siteguide/internal/knowledge"
	"github.com/siteguide/siteguide/internal/log"
	"github.com/siteguide/siteguide/internal/score"
)

// App holds the wired application components.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Pool         *pgxpool.Pool
	Genkit       *genkit.Genkit
	Store        *knowledge.Store
	Orchestrator *answer.Orchestrator
	Ingester     *ingest.Ingester

	// Collector crawls the configured seed sites; the crawl command uses it
	// directly, the orchestrator uses it as the fallback knowledge source.
	Collector answer.Collector
}

// New loads configuration and wires every component. Callers must Close the
// returned App.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with the googleai plugin")
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	store := knowledge.New(knowledge.NewPGQuerier(pool), embedder, logger)

	chunkCfg := chunk.Config{
		Size:      cfg.Chunk.Size,
		Overlap:   cfg.Chunk.Overlap,
		MinLength: cfg.Chunk.MinLength,
	}

	ingester, err := ingest.New(store, chunkCfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	collector, err := newCollector(cfg, chunkCfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	orchestrator, err := newOrchestrator(g, cfg, store, collector, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Genkit:       g,
		Store:        store,
		Orchestrator: orchestrator,
		Ingester:     ingester,
		Collector:    collector,
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// newPool runs migrations and opens the connection pool.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newCollector assembles the crawling pipeline over a fresh headless browser
// per run.
func newCollector(cfg *config.Config, chunkCfg chunk.Config, logger log.Logger) (*answer.SiteCollector, error) {
	browserCfg := browser.Config{
		NavigationTimeout: time.Duration(cfg.Crawl.NavigationTimeoutMs) * time.Millisecond,
	}
	factory := func() (answer.PageSource, error) {
		return browser.New(browserCfg, logger)
	}
	return answer.NewSiteCollector(factory,
		cfg.Crawl.Seeds,
		cfg.Crawl.PageBudget,
		crawl.Config{
			Workers:           cfg.Crawl.Workers,
			RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		},
		chunkCfg, logger)
}

// newOrchestrator assembles the answering pipeline: index, fallback
// collector, and generator.
func newOrchestrator(g *genkit.Genkit, cfg *config.Config, store *knowledge.Store, collector answer.Collector, logger log.Logger) (*answer.Orchestrator, error) {
	index := answer.NewStoreIndex(store, int32(cfg.Retrieval.TopK))

	gen, err := answer.NewGenkitGenerator(g, cfg.ModelName, cfg.Temperature,
		answer.RetryConfig{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
			MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
		}, cfg.Retry.RequestsPerSecond, logger)
	if err != nil {
		return nil, err
	}

	return answer.New(index, collector, gen, answer.Config{
		Scorer: score.Scorer{MinTermLen: cfg.Retrieval.MinTermLen},
		Filter: score.FilterOptions{
			MinScore:        cfg.Retrieval.MinScore,
			AdmitLongerThan: cfg.Retrieval.AdmitLongerThan,
		},
		MinRelevant: cfg.Retrieval.MinRelevant,
		CacheTTL:    time.Duration(cfg.Crawl.CacheTTLMinutes) * time.Minute,
	}, logger)
}
