// Package dictionary turns word lists into spelling archives and fetches
// prebuilt archives.
package dictionary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// WordEntry is one word list item. Plain lists use Text and Weight;
// jmdict-simplified entries carry their spellings in Kanji and Kana instead.
type WordEntry struct {
	Text   string          `json:"text"`
	Weight float64         `json:"weight"`
	Kanji  []JMdictElement `json:"kanji"`
	Kana   []JMdictElement `json:"kana"`
}

type JMdictElement struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
}

// uncommonWeight is added to spellings not marked common.
const uncommonWeight = 1

// Entries expands w into archive entries.
func (w WordEntry) Entries() []archive.Entry {
	var out []archive.Entry
	if w.Text != "" {
		out = append(out, archive.Entry{Word: w.Text, Weight: w.Weight})
	}
	for _, group := range [][]JMdictElement{w.Kanji, w.Kana} {
		for _, el := range group {
			if el.Text == "" {
				continue
			}
			weight := w.Weight
			if !el.Common {
				weight += uncommonWeight
			}
			out = append(out, archive.Entry{Word: el.Text, Weight: weight})
		}
	}
	return out
}

// LoadWordList reads a word list. It accepts a JSON object {"words": [...]},
// a bare JSON array, or tab separated "word<TAB>weight" lines with an
// optional weight.
func LoadWordList(path string) ([]archive.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		words, err := decodeJSON(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse word list %s: %w", path, err)
		}
		var out []archive.Entry
		for _, w := range words {
			out = append(out, w.Entries()...)
		}
		return out, nil
	}
	return parseTSV(data)
}

func decodeJSON(data []byte) ([]WordEntry, error) {
	var wrapped struct {
		Words []WordEntry `json:"words"`
	}
	// Try the object wrapper first { "words": [...] }
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Words) > 0 {
		return wrapped.Words, nil
	}
	var words []WordEntry
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("not a word object or array: %w", err)
	}
	return words, nil
}

func parseTSV(data []byte) ([]archive.Entry, error) {
	var out []archive.Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, weightStr, hasWeight := strings.Cut(text, "\t")
		e := archive.Entry{Word: strings.TrimSpace(word)}
		if hasWeight {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad weight %q", line, weightStr)
			}
			e.Weight = w
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
