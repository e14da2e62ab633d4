package cache

import "time"

// ArchiveRecord is the registry row for an archive that has been opened with the cache enabled.
type ArchiveRecord struct {
	ID        int64
	Digest    string
	Path      string
	Locale    string
	Title     string
	WordCount int
	OpenedAt  time.Time
	OpenCount int
}
