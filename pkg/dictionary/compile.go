package dictionary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// Normalize merges duplicate words, keeping the lowest weight, and sorts the
// result by word. Empty words are dropped.
func Normalize(entries []archive.Entry) []archive.Entry {
	idx := make(map[string]float64, len(entries))
	for _, e := range entries {
		word := strings.TrimSpace(e.Word)
		if word == "" {
			continue
		}
		if prev, ok := idx[word]; !ok || e.Weight < prev {
			idx[word] = e.Weight
		}
	}
	out := make([]archive.Entry, 0, len(idx))
	for word, weight := range idx {
		out = append(out, archive.Entry{Word: word, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}

// Compile normalizes entries and writes them as an archive at outPath.
// It returns the number of distinct words written.
func Compile(entries []archive.Entry, meta *archive.Metadata, outPath string) (int, error) {
	words := Normalize(entries)
	if len(words) == 0 {
		return 0, fmt.Errorf("word list is empty")
	}
	if err := archive.WriteFile(outPath, meta, words); err != nil {
		return 0, err
	}
	return len(words), nil
}
