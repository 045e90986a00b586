package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Source type values recorded in document metadata.
const (
	// SourceTypeDocument marks passages ingested from the documents
	// directory by the offline pipeline.
	SourceTypeDocument = "document"

	// SourceTypeWeb marks passages chunked from crawled pages.
	SourceTypeWeb = "web"
)

// Document is one indexed passage with its metadata.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result pairs a document with its similarity to the query, in [0, 1].
type Result struct {
	Document   Document
	Similarity float64
}

// DocumentID derives a stable index ID from a passage's provenance, so
// re-indexing the same source overwrites its old passages in place.
func DocumentID(sourceType, source string, offset int) string {
	hash := sha256.Sum256([]byte(source))
	return fmt.Sprintf("%s_%s_%d", sourceType, hex.EncodeToString(hash[:8]), offset)
}
