// Package spellchecker is the host-facing boundary: open an archive, read its
// locale, and run correctness checks and suggestion queries asynchronously.
//
// IsCorrect and Suggest return immediately with a pending promise; the work
// runs on the scheduler's worker pool and the promise settles on the host
// loop. Locale and LocaleName are plain metadata reads and never scheduled.
package spellchecker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/japaniel/spellbridge/pkg/archive"
	"github.com/japaniel/spellbridge/pkg/bridge"
	"github.com/japaniel/spellbridge/pkg/cache"
	"github.com/japaniel/spellbridge/pkg/hostloop"
	"github.com/japaniel/spellbridge/pkg/task"
)

// ErrClosed is delivered for queries issued after Close.
var ErrClosed = errors.New("spellchecker closed")

// SpellChecker binds one archive to a scheduler.
type SpellChecker struct {
	handle *archive.Handle
	sched  *bridge.Scheduler
	cfg    archive.SpellerConfig
	memo   task.Memo
	logger *slog.Logger

	closeOnce sync.Once
}

type options struct {
	cfg    archive.SpellerConfig
	store  *cache.Store
	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithConfig replaces the default suggestion config (ten best, caps-aware).
func WithConfig(cfg archive.SpellerConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithCache memoizes suggestion results in store.
func WithCache(store *cache.Store) Option {
	return func(o *options) { o.store = store }
}

// WithLogger sets the logger. nil means no logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open opens the archive at path. Failures are returned as *archive.OpenError
// and leave the caller free to retry.
func Open(sched *bridge.Scheduler, path string, opts ...Option) (*SpellChecker, error) {
	o := options{cfg: archive.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("archive", path)
	sc := &SpellChecker{
		sched:  sched,
		cfg:    o.cfg,
		logger: logger,
		handle: archive.NewHandle(a, archive.WithReleaseHook(func(*archive.Archive) {
			logger.Debug("archive released")
		})),
	}
	if o.store != nil {
		scope, err := o.store.ForArchive(a)
		if err != nil {
			sc.handle.Release()
			return nil, fmt.Errorf("register archive in cache: %w", err)
		}
		sc.memo = scope
	}
	logger.Info("archive opened", "words", a.Size(), "digest", a.Digest())
	return sc, nil
}

// Locale returns the archive's locale code. ok is false when the archive has
// no metadata block.
func (sc *SpellChecker) Locale() (locale string, ok bool) {
	meta, ok := sc.handle.Archive().Metadata()
	if !ok {
		return "", false
	}
	return meta.Info.Locale, true
}

// LocaleName returns the display title matching the locale, or the first
// title. ok is false when the archive has no metadata block or no titles.
func (sc *SpellChecker) LocaleName() (name string, ok bool) {
	meta, ok := sc.handle.Archive().Metadata()
	if !ok {
		return "", false
	}
	return meta.LocaleName()
}

// Config returns the default suggestion config used by Suggest.
func (sc *SpellChecker) Config() archive.SpellerConfig { return sc.cfg }

// IsCorrect schedules a correctness check of word.
func (sc *SpellChecker) IsCorrect(word string) *hostloop.Promise[bool] {
	h, err := sc.handle.Retain()
	if err != nil {
		return rejected[bool](sc.sched.Loop(), task.KindCheck, word)
	}
	return bridge.Schedule[bool, bool](sc.sched, task.NewCheckTask(h, word))
}

// Suggest schedules a suggestion query for word using the default config.
func (sc *SpellChecker) Suggest(word string) *hostloop.Promise[[]string] {
	return sc.SuggestWithConfig(word, sc.cfg)
}

// SuggestWithConfig schedules a suggestion query for word using cfg.
func (sc *SpellChecker) SuggestWithConfig(word string, cfg archive.SpellerConfig) *hostloop.Promise[[]string] {
	h, err := sc.handle.Retain()
	if err != nil {
		return rejected[[]string](sc.sched.Loop(), task.KindSuggest, word)
	}
	return bridge.Schedule[[]archive.Suggestion, []string](sc.sched, task.NewSuggestTask(h, word, cfg, sc.memo))
}

// Close drops the host's reference. Tasks already scheduled keep the archive
// open until they finish.
func (sc *SpellChecker) Close() {
	sc.closeOnce.Do(sc.handle.Release)
}

// Released reports whether the archive has been closed, which happens once
// Close was called and every in-flight task has finished.
func (sc *SpellChecker) Released() bool { return sc.handle.Released() }

func rejected[T any](loop *hostloop.Loop, kind task.Kind, word string) *hostloop.Promise[T] {
	p := hostloop.NewPromise[T](loop)
	err := task.Fail(kind, word, ErrClosed)
	if postErr := loop.Post(func() { p.Reject(err) }); postErr != nil {
		p.Abandon(err)
	}
	return p
}
