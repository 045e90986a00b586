// Package knowledge manages the pre-built passage index: embedding
// generation, upserts, and vector similarity search over PostgreSQL with
// pgvector. The index itself is an external collaborator; this package is
// its client.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// DefaultSearchTimeout bounds one embedding+search round trip.
const DefaultSearchTimeout = 10 * time.Second

// Querier defines the database operations Store needs. The interface lives
// here, on the consumer side, so tests can supply a fake and production
// wires the pgx implementation from pg.go.
type Querier interface {
	// UpsertDocument inserts or updates a document with its embedding.
	UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error

	// SearchDocuments returns the topK nearest documents, optionally
	// restricted by a metadata containment filter.
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, filter map[string]string, topK int32) ([]Result, error)

	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// Store embeds content and talks to the vector index. Safe for concurrent
// use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. logger may be nil.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// embed generates the embedding vector for one text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add embeds a document's content and upserts it into the index.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("document %q: %w", doc.ID, err)
	}
	if err := s.queries.UpsertDocument(ctx, doc, embedding); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}
	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// SearchOption configures Search.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default 5.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds a metadata equality filter, e.g. ("source_type", "document").
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Search embeds the query and returns the most similar documents, ordered by
// similarity. A timeout keeps slow vector scans from blocking the request.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := searchConfig{topK: 5, timeout: DefaultSearchTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	results, err := s.queries.SearchDocuments(queryCtx, embedding, cfg.filter, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// Delete removes a document from the index.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// marshalMetadata is shared by the pgx querier; metadata always goes through
// json.Marshal, never string interpolation.
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}
