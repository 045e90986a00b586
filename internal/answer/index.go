package answer

import (
	"context"
	"strconv"

	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/knowledge"
)

// StoreIndex adapts the knowledge store to the Index interface, converting
// stored documents back into passages. Metadata written by ingestion
// ("source", "chunk_offset", "source_type") round-trips onto the passage.
type StoreIndex struct {
	store *knowledge.Store
	topK  int32
}

// NewStoreIndex wraps a knowledge store. topK below 1 falls back to the
// store's default.
func NewStoreIndex(store *knowledge.Store, topK int32) *StoreIndex {
	return &StoreIndex{store: store, topK: topK}
}

// Search embeds the query and returns the nearest stored passages.
func (s *StoreIndex) Search(ctx context.Context, query string) ([]chunk.Passage, error) {
	var opts []knowledge.SearchOption
	if s.topK > 0 {
		opts = append(opts, knowledge.WithTopK(s.topK))
	}
	results, err := s.store.Search(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	passages := make([]chunk.Passage, 0, len(results))
	for _, r := range results {
		p := chunk.Passage{Content: r.Document.Content}
		if md := r.Document.Metadata; md != nil {
			p.Source = md["source"]
			p.Kind = md["source_type"]
			if off, err := strconv.Atoi(md["chunk_offset"]); err == nil {
				p.Offset = off
			}
		}
		passages = append(passages, p)
	}
	return passages, nil
}
