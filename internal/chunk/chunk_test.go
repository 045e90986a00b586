package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses runs", "a  b\t\tc\n\nd", "a b c d"},
		{"trims edges", "  hello world  ", "hello world"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplit_OffsetsIncreaseAndCoverText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100) // 1000 chars, no whitespace
	cfg := Config{Size: 300, Overlap: 50, MinLength: 10}

	passages, err := Split(text, "doc.txt", KindDocument, cfg)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Split() returned no passages")
	}

	prev := -1
	covered := 0
	for i, p := range passages {
		if p.Offset <= prev {
			t.Errorf("passage %d offset %d does not increase past %d", i, p.Offset, prev)
		}
		if p.Offset != i*(cfg.Size-cfg.Overlap) {
			t.Errorf("passage %d offset = %d, want %d", i, p.Offset, i*(cfg.Size-cfg.Overlap))
		}
		if p.Offset > covered {
			t.Errorf("gap before passage %d: offset %d, covered up to %d", i, p.Offset, covered)
		}
		if end := p.Offset + len(p.Content); end > covered {
			covered = end
		}
		prev = p.Offset
	}
	if covered != len(text) {
		t.Errorf("passages cover %d chars, want %d", covered, len(text))
	}
}

func TestSplit_DropsShortWindows(t *testing.T) {
	// 50 chars of text with a 1000-char window: the single window is below
	// the default threshold and must be dropped.
	text := strings.Repeat("x", 50)

	passages, err := Split(text, "doc.txt", KindDocument, Config{Size: 1000, Overlap: 200})
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(passages) != 0 {
		t.Errorf("Split() = %d passages, want 0", len(passages))
	}
}

func TestSplit_DropsShortTail(t *testing.T) {
	text := strings.Repeat("y", 250)
	cfg := Config{Size: 200, Overlap: 0, MinLength: 60}

	passages, err := Split(text, "doc.txt", KindDocument, cfg)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	// Window 0 is 200 chars (kept), window 1 is the 50-char tail (dropped).
	if len(passages) != 1 {
		t.Fatalf("Split() = %d passages, want 1", len(passages))
	}
	if passages[0].Offset != 0 || len(passages[0].Content) != 200 {
		t.Errorf("kept passage offset=%d len=%d, want 0/200", passages[0].Offset, len(passages[0].Content))
	}
}

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"overlap equals size", Config{Size: 100, Overlap: 100}},
		{"overlap exceeds size", Config{Size: 100, Overlap: 150}},
		{"zero size", Config{Size: 0, Overlap: 0}},
		{"negative overlap", Config{Size: 100, Overlap: -1}},
		{"negative min length", Config{Size: 100, Overlap: 0, MinLength: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("some text", "doc.txt", KindDocument, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Split() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSplit_MultibyteTextStaysValidUTF8(t *testing.T) {
	// 300 three-byte runes. Byte-indexed windows would land mid-rune at
	// every boundary; offsets must count characters, not bytes.
	text := strings.Repeat("テキスト情報", 50)
	cfg := Config{Size: 250, Overlap: 50, MinLength: 10}

	passages, err := Split(text, "page", KindWeb, cfg)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Split() returned no passages")
	}

	runes := []rune(Normalize(text))
	for i, p := range passages {
		if !utf8.ValidString(p.Content) {
			t.Errorf("passage %d at offset %d is not valid UTF-8: %q", i, p.Offset, p.Content)
		}
		if p.Offset != i*(cfg.Size-cfg.Overlap) {
			t.Errorf("passage %d offset = %d, want %d", i, p.Offset, i*(cfg.Size-cfg.Overlap))
		}
		// The offset must address the window start in characters.
		if want := string(runes[p.Offset : p.Offset+utf8.RuneCountInString(p.Content)]); p.Content != want {
			t.Errorf("passage %d content does not match rune window at offset %d", i, p.Offset)
		}
	}
}

func TestSplit_NormalizesBeforeWindowing(t *testing.T) {
	text := "word  " + strings.Repeat("a ", 100) + "\n\n tail"
	cfg := Config{Size: 80, Overlap: 10, MinLength: 20}

	passages, err := Split(text, "page", KindWeb, cfg)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	for i, p := range passages {
		if strings.Contains(p.Content, "  ") {
			t.Errorf("passage %d contains uncollapsed whitespace: %q", i, p.Content)
		}
		if p.Kind != KindWeb {
			t.Errorf("passage %d kind = %q, want %q", i, p.Kind, KindWeb)
		}
	}
}
