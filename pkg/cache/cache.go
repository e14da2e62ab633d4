// Package cache persists suggestion results in SQLite so repeated queries
// against the same archive skip the search.
//
// Archives are keyed by content digest, so a file that is replaced on disk
// gets a fresh cache scope. Reads go straight to the database; writes are
// batched through a BatchWriter and become visible once committed.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// Options configures a Store.
type Options struct {
	// BatchSize is the number of writes committed per transaction.
	BatchSize int
	// FlushInterval commits a partial batch after this long. 0 disables it.
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Store is a suggestion cache backed by a database.
type Store struct {
	db     *sql.DB
	ownsDB bool
	bw     *BatchWriter
	logger *slog.Logger
}

// Open migrates db and returns a Store over it. The caller keeps ownership of db.
func Open(db *sql.DB, opts Options) (*Store, error) {
	if err := InitDB(db); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{
		db:     db,
		bw:     NewBatchWriter(db, opts.BatchSize, opts.FlushInterval),
		logger: logger,
	}
	s.bw.OnError = func(err error) {
		s.logger.Warn("cache write failed", "err", err)
	}
	return s, nil
}

// OpenFile opens (creating if needed) a SQLite cache at path.
func OpenFile(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	s, err := Open(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// ForArchive registers a and returns the cache scope for its digest.
func (s *Store) ForArchive(a *archive.Archive) (*Scope, error) {
	var locale, title string
	if meta, ok := a.Metadata(); ok {
		locale = meta.Info.Locale
		title, _ = meta.LocaleName()
	}
	id, err := RegisterArchive(s.db, a.Digest(), a.Path(), locale, title, a.Size())
	if err != nil {
		return nil, err
	}
	return &Scope{store: s, archiveID: id}, nil
}

// Close commits pending writes. The database is closed only when the Store opened it.
func (s *Store) Close() error {
	err := s.bw.Close()
	if errors.Is(err, ErrBatchWriterClosed) {
		return nil
	}
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// Scope is the cache view of a single archive. It is safe for concurrent use.
type Scope struct {
	store     *Store
	archiveID int64
}

// ArchiveID returns the registry id of the scoped archive.
func (sc *Scope) ArchiveID() int64 { return sc.archiveID }

// Lookup returns cached results. Database errors count as a miss.
func (sc *Scope) Lookup(word, configKey string) ([]archive.Suggestion, bool) {
	res, ok, err := GetSuggestions(sc.store.db, sc.archiveID, word, configKey)
	if err != nil {
		sc.store.logger.Warn("cache lookup failed", "word", word, "err", err)
		return nil, false
	}
	return res, ok
}

// Store queues results for writing.
func (sc *Scope) Store(word, configKey string, results []archive.Suggestion) {
	results = append([]archive.Suggestion(nil), results...)
	err := sc.store.bw.Submit(sc.archiveID, func(_ context.Context, tx *sql.Tx) error {
		return SaveSuggestions(tx, sc.archiveID, word, configKey, results)
	})
	if err != nil {
		sc.store.logger.Debug("cache write skipped", "word", word, "err", err)
	}
}

// Purge drops the archive's cached results, including writes not yet committed.
func (sc *Scope) Purge() (int64, error) {
	dropped := sc.store.bw.Discard(sc.archiveID)
	n, err := PurgeSuggestions(sc.store.db, sc.archiveID)
	if err != nil {
		return 0, err
	}
	sc.store.logger.Debug("cache purged", "archive", sc.archiveID, "rows", n, "queued", dropped)
	return n, nil
}
