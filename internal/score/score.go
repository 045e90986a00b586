// Package score ranks passages against a question by lexical term overlap.
// The score of a passage is the number of distinct question terms (above a
// minimum length) found case-insensitively in its content.
package score

import (
	"strings"

	"github.com/siteguide/siteguide/internal/chunk"
)

// DefaultMinTermLen is the default minimum question-token length. Tokens at
// or below this length ("a", "the", "is") carry no signal and are ignored.
const DefaultMinTermLen = 3

// Scored pairs a passage with its relevance score. Ordering by score is used
// for filtering only; output order is not a stable sort.
type Scored struct {
	Passage chunk.Passage
	Score   int
}

// Scorer tokenizes questions and counts term matches. The zero value uses
// DefaultMinTermLen.
type Scorer struct {
	// MinTermLen is the minimum token length; tokens of this length or
	// shorter are discarded before matching.
	MinTermLen int
}

func (s Scorer) minTermLen() int {
	if s.MinTermLen == 0 {
		return DefaultMinTermLen
	}
	return s.MinTermLen
}

// Terms returns the distinct, lowercased question tokens longer than the
// minimum length, in first-seen order.
func (s Scorer) Terms(question string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range strings.Fields(strings.ToLower(question)) {
		if len(tok) <= s.minTermLen() {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// Score counts how many distinct question terms appear as substrings of the
// passage content, case-insensitively. Deterministic and symmetric in case.
func (s Scorer) Score(question, content string) int {
	lower := strings.ToLower(content)
	n := 0
	for _, term := range s.Terms(question) {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}

// FilterOptions controls Filter admission.
type FilterOptions struct {
	// MinScore is the lowest score a passage may have and still be admitted.
	MinScore int

	// AdmitLongerThan, when positive, admits passages whose content exceeds
	// this length regardless of score. Long passages often paraphrase the
	// question without sharing its exact terms.
	AdmitLongerThan int
}

// Filter scores every passage and returns those admitted by opts, each paired
// with its score.
func (s Scorer) Filter(question string, passages []chunk.Passage, opts FilterOptions) []Scored {
	var kept []Scored
	for _, p := range passages {
		sc := s.Score(question, p.Content)
		if sc >= opts.MinScore || (opts.AdmitLongerThan > 0 && len(p.Content) > opts.AdmitLongerThan) {
			kept = append(kept, Scored{Passage: p, Score: sc})
		}
	}
	return kept
}
