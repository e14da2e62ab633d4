package archive

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxEdits is the largest edit distance considered when collecting suggestions.
const MaxEdits = 2

// SpellerConfig tunes a suggestion query.
type SpellerConfig struct {
	// NBest caps the number of suggestions; 0 means unlimited.
	NBest int `toml:"n_best" yaml:"n_best"`
	// MaxWeight drops candidates heavier than this cutoff.
	MaxWeight *float64 `toml:"max_weight" yaml:"max_weight"`
	// Beam keeps only candidates within Beam of the best weight.
	Beam *float64 `toml:"beam" yaml:"beam"`
	// WithCaps makes lookups and results follow the input's capitalization.
	WithCaps bool `toml:"with_caps" yaml:"with_caps"`
}

// DefaultConfig returns ten best results, capitalization-aware, with no
// weight cutoff and no beam.
func DefaultConfig() SpellerConfig {
	return SpellerConfig{NBest: 10, WithCaps: true}
}

// Key is a stable textual form of the config, used to key cached results.
func (c SpellerConfig) Key() string {
	opt := func(f *float64) string {
		if f == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *f)
	}
	return fmt.Sprintf("n=%d;w=%s;b=%s;caps=%t", c.NBest, opt(c.MaxWeight), opt(c.Beam), c.WithCaps)
}

// Suggestion is one ranked candidate. Lower weight is better.
type Suggestion struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

type casing int

const (
	caseLower casing = iota
	caseTitle
	caseUpper
	caseMixed
)

func classify(word string) casing {
	var letters, upper int
	firstUpper := false
	for i, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			upper++
			if i == 0 {
				firstUpper = true
			}
		}
	}
	switch {
	case upper == 0:
		return caseLower
	case upper == letters && letters > 1:
		return caseUpper
	case firstUpper && upper == 1:
		return caseTitle
	default:
		return caseMixed
	}
}

// variants lists the spellings tried for word, the word itself first.
func (a *Archive) variants(word string) []string {
	out := []string{word}
	switch classify(word) {
	case caseTitle:
		out = append(out, cases.Lower(a.tag).String(word))
	case caseUpper:
		lower := cases.Lower(a.tag).String(word)
		out = append(out, lower, cases.Title(a.tag).String(lower))
	}
	return out
}

func (a *Archive) recase(s string, c casing) string {
	switch c {
	case caseTitle:
		return cases.Title(a.tag, cases.NoLower).String(s)
	case caseUpper:
		return cases.Upper(a.tag).String(s)
	}
	return s
}

// IsCorrect reports whether word is accepted by the lexicon. A Title-case or
// ALL-CAPS word is also accepted when its lower-cased form is.
func (a *Archive) IsCorrect(word string) bool {
	if word == "" {
		return false
	}
	for _, v := range a.variants(word) {
		if _, ok := a.lex.weights[v]; ok {
			return true
		}
	}
	return false
}

// Suggest returns candidate corrections for word ordered best first.
// The word itself is included when the lexicon accepts it.
func (a *Archive) Suggest(word string, cfg SpellerConfig) []Suggestion {
	if word == "" {
		return nil
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = true

	tries := []string{word}
	if cfg.WithCaps {
		tries = a.variants(word)
	}

	best := make(map[string]float64)
	for _, v := range tries {
		n := utf8.RuneCountInString(v)
		for l := n - MaxEdits; l <= n+MaxEdits; l++ {
			for _, cand := range a.lex.byLen[l] {
				d := lev.Distance(v, cand)
				if d > MaxEdits {
					continue
				}
				w := float64(d) + a.lex.weights[cand]
				if prev, ok := best[cand]; !ok || w < prev {
					best[cand] = w
				}
			}
		}
	}
	if len(best) == 0 {
		return nil
	}

	c := caseLower
	if cfg.WithCaps {
		c = classify(word)
	}
	merged := make(map[string]float64, len(best))
	for cand, w := range best {
		out := a.recase(cand, c)
		if prev, ok := merged[out]; !ok || w < prev {
			merged[out] = w
		}
	}

	res := make([]Suggestion, 0, len(merged))
	for v, w := range merged {
		if cfg.MaxWeight != nil && w > *cfg.MaxWeight {
			continue
		}
		res = append(res, Suggestion{Value: v, Weight: w})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Weight != res[j].Weight {
			return res[i].Weight < res[j].Weight
		}
		return strings.Compare(res[i].Value, res[j].Value) < 0
	})
	if cfg.Beam != nil && len(res) > 0 {
		limit := res[0].Weight + *cfg.Beam
		cut := len(res)
		for i, s := range res {
			if s.Weight > limit {
				cut = i
				break
			}
		}
		res = res[:cut]
	}
	if cfg.NBest > 0 && len(res) > cfg.NBest {
		res = res[:cfg.NBest]
	}
	return res
}

// Tag returns the language tag parsed from the metadata locale, or language.Und.
func (a *Archive) Tag() language.Tag { return a.tag }
