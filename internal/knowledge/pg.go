package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGQuerier implements Querier against PostgreSQL + pgvector.
//
// All queries are parameterized; the metadata filter uses the JSONB @>
// containment operator with a json.Marshal-produced argument, so no caller
// input is ever interpolated into SQL.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier wraps a connection pool. The pool's lifetime is managed by
// the caller.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

// UpsertDocument inserts or updates a document with its embedding.
func (q *PGQuerier) UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		doc.ID, doc.Content, embedding, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// SearchDocuments returns the topK nearest documents by cosine distance.
func (q *PGQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, filter map[string]string, topK int32) ([]Result, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(filter) > 0 {
		filterJSON, marshalErr := marshalMetadata(filter)
		if marshalErr != nil {
			return nil, marshalErr
		}
		rows, err = q.pool.Query(ctx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			WHERE metadata @> $2
			ORDER BY embedding <=> $1
			LIMIT $3`,
			embedding, filterJSON, topK)
	} else {
		rows, err = q.pool.Query(ctx, `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			ORDER BY embedding <=> $1
			LIMIT $2`,
			embedding, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			doc.Metadata = map[string]string{}
		}
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return results, nil
}

// DeleteDocument deletes a document by ID.
func (q *PGQuerier) DeleteDocument(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
