package task

import (
	"context"
	"sync"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// Memo stores suggestion results across tasks. Implementations must be safe
// for concurrent use; lookups and stores happen on worker goroutines.
type Memo interface {
	Lookup(word, key string) ([]archive.Suggestion, bool)
	Store(word, key string, results []archive.Suggestion)
}

// SuggestTask asks for ranked corrections of a word.
type SuggestTask struct {
	handle  *archive.Handle
	word    string
	cfg     archive.SpellerConfig
	memo    Memo
	release sync.Once
}

// NewSuggestTask takes ownership of one reference on h. memo may be nil.
func NewSuggestTask(h *archive.Handle, word string, cfg archive.SpellerConfig, memo Memo) *SuggestTask {
	return &SuggestTask{handle: h, word: word, cfg: cfg, memo: memo}
}

func (t *SuggestTask) Kind() Kind                    { return KindSuggest }
func (t *SuggestTask) Word() string                  { return t.word }
func (t *SuggestTask) Config() archive.SpellerConfig { return t.cfg }

func (t *SuggestTask) Perform(ctx context.Context) ([]archive.Suggestion, error) {
	key := t.cfg.Key()
	if t.memo != nil {
		if res, ok := t.memo.Lookup(t.word, key); ok {
			return res, nil
		}
	}
	res := t.handle.Archive().Suggest(t.word, t.cfg)
	if t.memo != nil {
		t.memo.Store(t.word, key, res)
	}
	return res, nil
}

// Complete keeps the engine's ranking: index 0 is the best suggestion.
func (t *SuggestTask) Complete(raw []archive.Suggestion) ([]string, error) {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = s.Value
	}
	return out, nil
}

func (t *SuggestTask) Release() { t.release.Do(t.handle.Release) }
