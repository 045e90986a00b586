package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/siteguide/siteguide/internal/chunk"
	"github.com/siteguide/siteguide/internal/log"
	"github.com/siteguide/siteguide/internal/score"
)

type fakeIndex struct {
	passages  []chunk.Passage
	err       error
	calls     int
	lastQuery string
}

func (f *fakeIndex) Search(_ context.Context, query string) ([]chunk.Passage, error) {
	f.calls++
	f.lastQuery = query
	return f.passages, f.err
}

type fakeCollector struct {
	passages []chunk.Passage
	err      error
	calls    int
}

func (f *fakeCollector) Collect(context.Context) ([]chunk.Passage, error) {
	f.calls++
	return f.passages, f.err
}

// fakeGen replies in order and repeats the last reply when exhausted.
type fakeGen struct {
	replies []string
	prompts []string
	err     error
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	if i < 0 {
		return "", nil
	}
	return f.replies[i], nil
}

func testConfig() Config {
	return Config{
		Scorer: score.Scorer{},
		Filter: score.FilterOptions{MinScore: 1},
	}
}

func relevantPassage(source string) chunk.Passage {
	return chunk.Passage{
		Content: "Acme offers consulting services to enterprise clients.",
		Source:  source,
		Kind:    chunk.KindDocument,
	}
}

func irrelevantPassage() chunk.Passage {
	return chunk.Passage{
		Content: "Totally unrelated notes on gardening and compost.",
		Source:  "doc/garden.md",
		Kind:    chunk.KindDocument,
	}
}

const question = "What services does Acme offer?"

func TestAnswer_IndexHit_NoFallback(t *testing.T) {
	index := &fakeIndex{passages: []chunk.Passage{relevantPassage("doc/services.md")}}
	collector := &fakeCollector{}
	gen := &fakeGen{replies: []string{"Acme offers consulting."}}

	o, err := New(index, collector, gen, testConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if collector.calls != 0 {
		t.Errorf("collector called %d times despite relevant index hit", collector.calls)
	}
	if resp.Fallback {
		t.Error("Fallback = true, want false")
	}
	if resp.Text != "Acme offers consulting." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "doc/services.md" {
		t.Errorf("Sources = %v, want the index passage", resp.Sources)
	}
}

func TestAnswer_EmptyIndex_TriggersFallback(t *testing.T) {
	index := &fakeIndex{}
	collector := &fakeCollector{passages: []chunk.Passage{relevantPassage("https://example.com/services")}}
	gen := &fakeGen{replies: []string{"Acme offers consulting."}}

	o, _ := New(index, collector, gen, testConfig(), log.NewNop())

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if collector.calls != 1 {
		t.Errorf("collector called %d times, want 1", collector.calls)
	}
	if !resp.Fallback {
		t.Error("Fallback = false, want true")
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "https://example.com/services" {
		t.Errorf("Sources = %v, want the crawled passage", resp.Sources)
	}
}

func TestAnswer_LowScores_TriggerFallback(t *testing.T) {
	// The index answers, but nothing passes the score filter.
	index := &fakeIndex{passages: []chunk.Passage{irrelevantPassage()}}
	collector := &fakeCollector{passages: []chunk.Passage{relevantPassage("https://example.com/")}}
	gen := &fakeGen{replies: []string{"answer"}}

	o, _ := New(index, collector, gen, testConfig(), log.NewNop())

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if collector.calls != 1 {
		t.Errorf("collector called %d times, want 1", collector.calls)
	}
	if !resp.Fallback {
		t.Error("Fallback = false, want true")
	}
}

func TestAnswer_MinRelevantThreshold(t *testing.T) {
	// One relevant passage is below a MinRelevant of 2.
	index := &fakeIndex{passages: []chunk.Passage{relevantPassage("doc/a.md")}}
	collector := &fakeCollector{passages: []chunk.Passage{
		relevantPassage("https://example.com/a"),
		relevantPassage("https://example.com/b"),
	}}
	gen := &fakeGen{replies: []string{"answer"}}

	cfg := testConfig()
	cfg.MinRelevant = 2
	o, _ := New(index, collector, gen, cfg, log.NewNop())

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if collector.calls != 1 {
		t.Errorf("collector called %d times, want 1", collector.calls)
	}
	if !resp.Fallback {
		t.Error("Fallback = false, want true")
	}
}

func TestAnswer_SourcesCapped(t *testing.T) {
	var passages []chunk.Passage
	for i := range 8 {
		passages = append(passages, relevantPassage(fmt.Sprintf("doc/%d.md", i)))
	}
	index := &fakeIndex{passages: passages}
	gen := &fakeGen{replies: []string{"answer"}}

	o, _ := New(index, &fakeCollector{}, gen, testConfig(), log.NewNop())

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if len(resp.Sources) != DefaultMaxSources {
		t.Errorf("len(Sources) = %d, want %d", len(resp.Sources), DefaultMaxSources)
	}
}

func TestAnswer_SourcesOrderedByScore(t *testing.T) {
	weak := chunk.Passage{
		// Matches only "acme".
		Content: "Acme was founded in 1999 and is headquartered downtown.",
		Source:  "doc/history.md",
	}
	strong := relevantPassage("doc/services.md") // matches "acme" and "services"
	index := &fakeIndex{passages: []chunk.Passage{weak, strong}}
	gen := &fakeGen{replies: []string{"answer"}}

	o, _ := New(index, &fakeCollector{}, gen, testConfig(), log.NewNop())

	resp, err := o.Answer(context.Background(), question, nil)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(resp.Sources))
	}
	if resp.Sources[0].Source != "doc/services.md" {
		t.Errorf("Sources[0] = %q, want the higher-scored passage first", resp.Sources[0].Source)
	}
}

func TestAnswer_PromptContainsContextAndQuestion(t *testing.T) {
	p := relevantPassage("doc/services.md")
	index := &fakeIndex{passages: []chunk.Passage{p}}
	gen := &fakeGen{replies: []string{"answer"}}

	o, _ := New(index, &fakeCollector{}, gen, testConfig(), log.NewNop())

	if _, err := o.Answer(context.Background(), question, nil); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times without history, want 1", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, p.Content) {
		t.Error("answer prompt missing the passage content")
	}
	if !strings.Contains(prompt, question) {
		t.Error("answer prompt missing the question")
	}
}

func TestAnswer_HistoryRewritesQuestion(t *testing.T) {
	index := &fakeIndex{passages: []chunk.Passage{relevantPassage("doc/services.md")}}
	gen := &fakeGen{replies: []string{"What services does Acme offer?", "answer"}}
	history := []Turn{{Human: "Tell me about Acme.", Assistant: "Acme is a consultancy."}}

	o, _ := New(index, &fakeCollector{}, gen, testConfig(), log.NewNop())

	if _, err := o.Answer(context.Background(), "what do they offer?", history); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator called %d times with history, want 2 (rewrite + answer)", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Human: Tell me about Acme.") {
		t.Error("rewrite prompt missing the conversation transcript")
	}
	if !strings.Contains(gen.prompts[0], "what do they offer?") {
		t.Error("rewrite prompt missing the follow-up question")
	}
	if index.lastQuery != "What services does Acme offer?" {
		t.Errorf("retrieval query = %q, want the rewritten question", index.lastQuery)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	o, _ := New(&fakeIndex{}, &fakeCollector{}, &fakeGen{}, testConfig(), log.NewNop())

	for _, q := range []string{"", "   ", "\n\n"} {
		if _, err := o.Answer(context.Background(), q, nil); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Answer(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
}

func TestAnswer_StageFailuresPropagate(t *testing.T) {
	t.Run("index", func(t *testing.T) {
		o, _ := New(&fakeIndex{err: errors.New("index down")}, &fakeCollector{}, &fakeGen{}, testConfig(), log.NewNop())
		if _, err := o.Answer(context.Background(), question, nil); err == nil {
			t.Error("Answer() succeeded despite index failure")
		}
	})
	t.Run("collector", func(t *testing.T) {
		o, _ := New(&fakeIndex{}, &fakeCollector{err: errors.New("crawl failed")}, &fakeGen{replies: []string{"x"}}, testConfig(), log.NewNop())
		if _, err := o.Answer(context.Background(), question, nil); err == nil {
			t.Error("Answer() succeeded despite collector failure")
		}
	})
	t.Run("generator", func(t *testing.T) {
		index := &fakeIndex{passages: []chunk.Passage{relevantPassage("doc/a.md")}}
		o, _ := New(index, &fakeCollector{}, &fakeGen{err: errors.New("model down")}, testConfig(), log.NewNop())
		if _, err := o.Answer(context.Background(), question, nil); err == nil {
			t.Error("Answer() succeeded despite generator failure")
		}
	})
}

func TestAnswer_CrawlCacheReused(t *testing.T) {
	collector := &fakeCollector{passages: []chunk.Passage{relevantPassage("https://example.com/")}}
	gen := &fakeGen{replies: []string{"answer"}}

	cfg := testConfig()
	cfg.CacheTTL = time.Minute
	o, _ := New(&fakeIndex{}, collector, gen, cfg, log.NewNop())

	for range 3 {
		if _, err := o.Answer(context.Background(), question, nil); err != nil {
			t.Fatalf("Answer() error: %v", err)
		}
	}
	if collector.calls != 1 {
		t.Errorf("collector called %d times within TTL, want 1", collector.calls)
	}
}

func TestAnswer_CrawlCacheDisabled(t *testing.T) {
	collector := &fakeCollector{passages: []chunk.Passage{relevantPassage("https://example.com/")}}
	gen := &fakeGen{replies: []string{"answer"}}

	o, _ := New(&fakeIndex{}, collector, gen, testConfig(), log.NewNop())

	for range 2 {
		if _, err := o.Answer(context.Background(), question, nil); err != nil {
			t.Fatalf("Answer() error: %v", err)
		}
	}
	if collector.calls != 2 {
		t.Errorf("collector called %d times with cache disabled, want 2", collector.calls)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain question", "plain question"},
		{"  padded  ", "padded"},
		{"line\nbreaks\r\neverywhere", "line breaks  everywhere"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
