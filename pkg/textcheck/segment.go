// Package textcheck proofs running text against a spell checker: it splits
// text into words, checks each distinct word once and reports misspellings in
// document order.
package textcheck

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/rivo/uniseg"
	"golang.org/x/text/language"
)

// Token is a word found in text.
type Token struct {
	Surface string // The text as it appears (e.g. "行っ")
	Lemma   string // The dictionary form when the segmenter knows it (e.g. "行く")
	Offset  int    // Byte offset of Surface in the input
}

// Word returns the form to look up: the lemma if known, else the surface.
func (t Token) Word() string {
	if t.Lemma != "" {
		return t.Lemma
	}
	return t.Surface
}

// Segmenter splits text into checkable words.
type Segmenter interface {
	Segment(text string) []Token
}

// NewSegmenter returns a segmenter suited to locale: a morphological
// tokenizer for Japanese, Unicode word boundaries for everything else.
func NewSegmenter(locale string) (Segmenter, error) {
	tag, err := language.Parse(locale)
	if err == nil {
		if base, _ := tag.Base(); base.String() == "ja" {
			return NewJapaneseSegmenter()
		}
	}
	return UnicodeSegmenter{}, nil
}

// UnicodeSegmenter splits on UAX #29 word boundaries. Segments without a
// letter and segments containing digits are skipped.
type UnicodeSegmenter struct{}

func (UnicodeSegmenter) Segment(text string) []Token {
	var out []Token
	offset := 0
	state := -1
	rest := text
	for len(rest) > 0 {
		var word string
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if checkable(word) {
			out = append(out, Token{Surface: word, Offset: offset})
		}
		offset += len(word)
	}
	return out
}

func checkable(word string) bool {
	hasLetter := false
	for _, r := range word {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	return hasLetter
}

// JapaneseSegmenter tokenizes with kagome and the IPA dictionary.
type JapaneseSegmenter struct {
	t *tokenizer.Tokenizer
}

// NewJapaneseSegmenter creates a new tokenizer instance.
func NewJapaneseSegmenter() (*JapaneseSegmenter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &JapaneseSegmenter{t: t}, nil
}

var asciiRegex = regexp.MustCompile(`^[a-zA-Z0-9\s[:punct:]]+$`)

// skipPOS lists parts of speech that are never spell checked.
var skipPOS = map[string]bool{"記号": true, "補助記号": true, "助詞": true, "助動詞": true}

func (s *JapaneseSegmenter) Segment(text string) []Token {
	var out []Token
	cursor := 0
	for _, token := range s.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		pos := strings.Index(text[cursor:], token.Surface)
		if pos < 0 {
			continue
		}
		offset := cursor + pos
		cursor = offset + len(token.Surface)

		if strings.TrimSpace(token.Surface) == "" || asciiRegex.MatchString(token.Surface) {
			continue
		}

		// Kagome IPA features:
		// 0: Part of Speech
		// 1: Sub-POS 1
		// 6: Base Form (Lemma)
		features := token.Features()
		if len(features) > 0 && skipPOS[features[0]] {
			continue
		}
		if len(features) > 1 && features[1] == "数" {
			continue
		}
		lemma := ""
		if len(features) > 6 && features[6] != "*" && features[6] != token.Surface {
			lemma = features[6]
		}
		out = append(out, Token{Surface: token.Surface, Lemma: lemma, Offset: offset})
	}
	return out
}
