package textcheck

import (
	"reflect"
	"testing"
)

func surfaces(tokens []Token) []string {
	var out []string
	for _, t := range tokens {
		out = append(out, t.Surface)
	}
	return out
}

func checkOffsets(t *testing.T, text string, tokens []Token) {
	t.Helper()
	for _, tok := range tokens {
		if got := text[tok.Offset : tok.Offset+len(tok.Surface)]; got != tok.Surface {
			t.Fatalf("token %q has offset %d pointing at %q", tok.Surface, tok.Offset, got)
		}
	}
}

func TestUnicodeSegmenter(t *testing.T) {
	text := "Hello, world! It's 2024 and x1y is odd."
	tokens := UnicodeSegmenter{}.Segment(text)
	want := []string{"Hello", "world", "It's", "and", "is", "odd"}
	if got := surfaces(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	checkOffsets(t, text, tokens)
	if tokens[1].Offset != 7 {
		t.Fatalf("expected world at 7, got %d", tokens[1].Offset)
	}
}

func TestUnicodeSegmenterNonLatin(t *testing.T) {
	text := "Mánnu čállá - Oslo."
	tokens := UnicodeSegmenter{}.Segment(text)
	want := []string{"Mánnu", "čállá", "Oslo"}
	if got := surfaces(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	checkOffsets(t, text, tokens)
}

func TestNewSegmenter(t *testing.T) {
	for _, locale := range []string{"en", "se", "", "not a locale"} {
		s, err := NewSegmenter(locale)
		if err != nil {
			t.Fatalf("%q: %v", locale, err)
		}
		if _, ok := s.(UnicodeSegmenter); !ok {
			t.Fatalf("%q: expected UnicodeSegmenter, got %T", locale, s)
		}
	}
	s, err := NewSegmenter("ja-JP")
	if err != nil {
		t.Fatalf("ja-JP: %v", err)
	}
	if _, ok := s.(*JapaneseSegmenter); !ok {
		t.Fatalf("ja-JP: expected JapaneseSegmenter, got %T", s)
	}
}

func TestJapaneseSegmenter(t *testing.T) {
	s, err := NewJapaneseSegmenter()
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}
	text := "猫が走った。2024年 OK"
	tokens := s.Segment(text)
	if len(tokens) == 0 {
		t.Fatal("No tokens found")
	}
	checkOffsets(t, text, tokens)

	var sawCat, sawRun bool
	for _, tok := range tokens {
		switch tok.Surface {
		case "猫":
			sawCat = true
		case "が", "た", "。":
			t.Errorf("particle or symbol %q should be skipped", tok.Surface)
		case "OK":
			t.Errorf("ascii token %q should be skipped", tok.Surface)
		}
		if tok.Word() == "走る" {
			sawRun = true
		}
	}
	if !sawCat || !sawRun {
		t.Fatalf("expected 猫 and the lemma 走る, got %+v", tokens)
	}
}
