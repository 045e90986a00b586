// Package chunk splits cleaned text into overlapping fixed-size windows
// suitable for embedding and retrieval.
//
// The chunker is the single source of truth for chunk geometry: the offline
// ingestion pipeline and the live crawl fallback both go through Split, so
// passages in the vector index and passages produced at query time share the
// same shape.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates chunk size / overlap values that cannot make
// progress (overlap >= size would loop forever at the same offset).
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Source kinds recorded on each passage.
const (
	KindDocument = "document"
	KindWeb      = "web"
)

// DefaultMinLength is the substantiality threshold: windows at or below this
// length are dropped rather than emitted as passages.
const DefaultMinLength = 100

// Passage is a unit of retrievable text. Immutable after creation.
type Passage struct {
	// Content is the cleaned, whitespace-collapsed window text.
	Content string

	// Source is the originating document path or URL.
	Source string

	// Offset is the character offset of the window start in the cleaned
	// source text.
	Offset int

	// Kind is the provenance: KindDocument or KindWeb.
	Kind string
}

// Config controls window geometry.
type Config struct {
	// Size is the window length in characters.
	Size int

	// Overlap is how many characters consecutive windows share.
	// Must be strictly less than Size.
	Overlap int

	// MinLength is the substantiality threshold. Zero means DefaultMinLength.
	MinLength int
}

// Validate reports whether the configuration can make progress.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d must be non-negative", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be less than size %d", ErrInvalidConfig, c.Overlap, c.Size)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("%w: min length %d must be non-negative", ErrInvalidConfig, c.MinLength)
	}
	return nil
}

func (c Config) minLength() int {
	if c.MinLength == 0 {
		return DefaultMinLength
	}
	return c.MinLength
}

// Normalize collapses every run of whitespace to a single space and trims
// leading and trailing whitespace. Offsets recorded on passages refer to the
// normalized text.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and cuts it into windows of cfg.Size characters,
// each starting cfg.Size-cfg.Overlap after the previous one. Windows whose
// length does not exceed the substantiality threshold are dropped, so short
// tails (and short inputs) produce no passages at all.
//
// The returned slice is fully materialized; chunk counts are bounded by the
// input length, so this is safe even for large pages.
func Split(text, source, kind string, cfg Config) ([]Passage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Window over runes, not bytes: byte indexing would cut multibyte
	// characters in half and record byte offsets instead of character
	// offsets.
	cleaned := []rune(Normalize(text))
	minLen := cfg.minLength()
	step := cfg.Size - cfg.Overlap

	var passages []Passage
	for offset := 0; offset < len(cleaned); offset += step {
		end := offset + cfg.Size
		if end > len(cleaned) {
			end = len(cleaned)
		}
		window := cleaned[offset:end]
		if len(window) <= minLen {
			continue
		}
		passages = append(passages, Passage{
			Content: string(window),
			Source:  source,
			Offset:  offset,
			Kind:    kind,
		})
	}
	return passages, nil
}
