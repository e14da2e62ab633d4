package textcheck

import (
	"io"
	"log/slog"

	"github.com/japaniel/spellbridge/pkg/hostloop"
)

// Checker is the part of a spell checker the proofer needs.
type Checker interface {
	IsCorrect(word string) *hostloop.Promise[bool]
	Suggest(word string) *hostloop.Promise[[]string]
}

// Finding is a misspelled token, or a token whose check failed.
type Finding struct {
	Token       Token
	Suggestions []string
	Err         error
}

// Report summarizes a proofing run.
type Report struct {
	Tokens   int // words found in the text
	Distinct int // distinct words checked
	Findings []Finding
}

// Misspelled returns the number of findings without an error.
func (r Report) Misspelled() int {
	n := 0
	for _, f := range r.Findings {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Proofer checks text on a host loop.
type Proofer struct {
	Checker   Checker
	Segmenter Segmenter
	Loop      *hostloop.Loop
	// OnProgress is called on the loop with the number of distinct words resolved.
	OnProgress func(done, total int)
	// Logger is used for debug output. nil means no logging.
	Logger *slog.Logger
}

type verdict struct {
	done        bool
	correct     bool
	suggestions []string
	err         error
}

// Proof must be called on the loop goroutine. Each distinct word is checked
// once and misspelled words are sent to Suggest. Checks complete in any order,
// but emit receives findings in document order; it may be nil. The returned
// promise resolves with the full report after the last finding is emitted.
func (p *Proofer) Proof(text string, emit func(Finding)) *hostloop.Promise[Report] {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	result := hostloop.NewPromise[Report](p.Loop)

	tokens := p.Segmenter.Segment(text)
	wordIdx := make(map[string]int)
	var words []string
	tokenWord := make([]int, len(tokens))
	for i, tok := range tokens {
		w := tok.Word()
		idx, ok := wordIdx[w]
		if !ok {
			idx = len(words)
			wordIdx[w] = idx
			words = append(words, w)
		}
		tokenWord[i] = idx
	}

	report := Report{Tokens: len(tokens), Distinct: len(words)}
	if len(tokens) == 0 {
		result.Resolve(report)
		return result
	}
	logger.Debug("proofing", "tokens", len(tokens), "distinct", len(words))

	// Loop-confined state: every callback below runs on the loop.
	verdicts := make([]verdict, len(words))
	resolved := 0
	nextIdx := 0

	flush := func() {
		for nextIdx < len(tokens) {
			v := verdicts[tokenWord[nextIdx]]
			if !v.done {
				return
			}
			if !v.correct {
				f := Finding{Token: tokens[nextIdx], Suggestions: v.suggestions, Err: v.err}
				report.Findings = append(report.Findings, f)
				if emit != nil {
					emit(f)
				}
			}
			nextIdx++
		}
		result.Resolve(report)
	}

	settle := func(idx int, v verdict) {
		v.done = true
		verdicts[idx] = v
		resolved++
		if p.OnProgress != nil {
			p.OnProgress(resolved, len(words))
		}
		if v.err != nil {
			logger.Debug("word check failed", "word", words[idx], "err", v.err)
		}
		flush()
	}

	for idx, w := range words {
		idx, w := idx, w
		p.Checker.IsCorrect(w).Then(func(ok bool, err error) {
			switch {
			case err != nil:
				settle(idx, verdict{err: err})
			case ok:
				settle(idx, verdict{correct: true})
			default:
				p.Checker.Suggest(w).Then(func(list []string, err error) {
					settle(idx, verdict{suggestions: list, err: err})
				})
			}
		})
	}
	return result
}
