package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// RegisterArchive records an opened archive keyed by its digest and returns its id.
// Re-opening the same archive bumps open_count and refreshes path and opened_at.
func RegisterArchive(db DBExecutor, digest, path, locale, title string, wordCount int) (int64, error) {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return 0, fmt.Errorf("digest must be non-empty")
	}

	var id int64
	query := `INSERT INTO archives (digest, path, locale, title, word_count, opened_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(digest)
			  DO UPDATE SET
			    path = excluded.path,
			    opened_at = excluded.opened_at,
			    open_count = archives.open_count + 1
			  RETURNING id`
	err := db.QueryRow(query, digest, path, locale, title, wordCount, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert archive: %w", err)
	}
	return id, nil
}

// GetArchive returns the registry row for digest.
func GetArchive(db DBExecutor, digest string) (ArchiveRecord, error) {
	var rec ArchiveRecord
	var path, locale, title sql.NullString
	var openedAt sql.NullTime
	err := db.QueryRow(`SELECT id, digest, path, locale, title, word_count, opened_at, open_count FROM archives WHERE digest = ?`, digest).
		Scan(&rec.ID, &rec.Digest, &path, &locale, &title, &rec.WordCount, &openedAt, &rec.OpenCount)
	if err != nil {
		return ArchiveRecord{}, err
	}
	rec.Path = path.String
	rec.Locale = locale.String
	rec.Title = title.String
	if openedAt.Valid {
		rec.OpenedAt = openedAt.Time
	}
	return rec, nil
}

// GetSuggestions returns cached results for (archive, word, config key).
// found is false on a cache miss.
func GetSuggestions(db DBExecutor, archiveID int64, word, configKey string) (results []archive.Suggestion, found bool, err error) {
	var raw string
	err = db.QueryRow(`SELECT results FROM suggestions WHERE archive_id = ? AND word = ? AND config_key = ?`,
		archiveID, word, configKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("decode cached suggestions for %q: %w", word, err)
	}
	return results, true, nil
}

// SaveSuggestions stores results, replacing any previous entry.
func SaveSuggestions(db DBExecutor, archiveID int64, word, configKey string, results []archive.Suggestion) error {
	if archiveID <= 0 {
		return fmt.Errorf("archiveID must be positive")
	}
	if results == nil {
		results = []archive.Suggestion{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO suggestions (archive_id, word, config_key, results, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(archive_id, word, config_key) DO UPDATE SET
	  results = excluded.results,
	  created_at = excluded.created_at`,
		archiveID, word, configKey, string(raw), time.Now().UTC())
	return err
}

// CountSuggestions returns how many results are cached for an archive.
func CountSuggestions(db DBExecutor, archiveID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM suggestions WHERE archive_id = ?`, archiveID).Scan(&n)
	return n, err
}

// PurgeSuggestions drops every cached result for an archive.
func PurgeSuggestions(db DBExecutor, archiveID int64) (int64, error) {
	res, err := db.Exec(`DELETE FROM suggestions WHERE archive_id = ?`, archiveID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
