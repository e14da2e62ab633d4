package task

import (
	"context"
	"sync"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// CheckTask asks whether a word is correct.
type CheckTask struct {
	handle  *archive.Handle
	word    string
	release sync.Once
}

// NewCheckTask takes ownership of one reference on h.
func NewCheckTask(h *archive.Handle, word string) *CheckTask {
	return &CheckTask{handle: h, word: word}
}

func (t *CheckTask) Kind() Kind   { return KindCheck }
func (t *CheckTask) Word() string { return t.word }

func (t *CheckTask) Perform(ctx context.Context) (bool, error) {
	return t.handle.Archive().IsCorrect(t.word), nil
}

func (t *CheckTask) Complete(raw bool) (bool, error) { return raw, nil }

func (t *CheckTask) Release() { t.release.Do(t.handle.Release) }
