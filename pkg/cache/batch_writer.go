package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WriteFunc performs database writes inside a batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// pendingWrite is a WriteFunc tagged with the archive it belongs to and the
// archive's purge generation at submit time.
type pendingWrite struct {
	archiveID int64
	gen       uint64
	fn        WriteFunc
}

// BatchWriter buffers cache writes and commits them in batches. Within a
// batch, each archive's writes share one transaction, so a failing write only
// rolls back its own archive. Discard drops everything still queued for an
// archive.
type BatchWriter struct {
	mu     sync.Mutex
	buf    []pendingWrite
	limit  int
	closed bool

	// genMu guards gens, which Discard bumps. Lock order: mu, then genMu.
	genMu sync.Mutex
	gens  map[int64]uint64

	ticker   *time.Ticker
	batches  chan []pendingWrite
	stopTick chan struct{}
	wg       sync.WaitGroup

	db      *sql.DB
	OnError func(error)

	committed atomic.Int64
	discarded atomic.Int64

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter creates a BatchWriter over db. Buffered writes are committed
// once batchSize of them are queued, and also every flushInterval when it is
// positive.
func NewBatchWriter(db *sql.DB, batchSize int, flushInterval time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 32
	}
	bw := &BatchWriter{
		buf:      make([]pendingWrite, 0, batchSize),
		limit:    batchSize,
		gens:     make(map[int64]uint64),
		batches:  make(chan []pendingWrite, 2),
		stopTick: make(chan struct{}),
		db:       db,
	}
	bw.wg.Add(1)
	go bw.commitLoop()
	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.flushLoop()
	}
	return bw
}

// Submit queues fn for archiveID. It blocks only when two full batches are
// already waiting on the database.
func (bw *BatchWriter) Submit(archiveID int64, fn WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, pendingWrite{archiveID: archiveID, gen: bw.generation(archiveID), fn: fn})
	if len(bw.buf) >= bw.limit {
		bw.flushLocked()
	}
	return nil
}

// Discard drops every write queued for archiveID that has not started
// committing, and reports how many were removed from the buffer. Writes
// already handed to the committer are skipped when their batch runs.
func (bw *BatchWriter) Discard(archiveID int64) int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	bw.genMu.Lock()
	bw.gens[archiveID]++
	bw.genMu.Unlock()
	kept := bw.buf[:0]
	for _, w := range bw.buf {
		if w.archiveID != archiveID {
			kept = append(kept, w)
		}
	}
	n := len(bw.buf) - len(kept)
	clear(bw.buf[len(kept):])
	bw.buf = kept
	bw.discarded.Add(int64(n))
	return n
}

func (bw *BatchWriter) generation(archiveID int64) uint64 {
	bw.genMu.Lock()
	defer bw.genMu.Unlock()
	return bw.gens[archiveID]
}

// Committed returns how many writes have been committed so far.
func (bw *BatchWriter) Committed() int64 { return bw.committed.Load() }

// Discarded returns how many writes were dropped by Discard.
func (bw *BatchWriter) Discarded() int64 { return bw.discarded.Load() }

// flushLocked assumes bw.mu is held.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]pendingWrite, 0, bw.limit)
	bw.batches <- batch
}

func (bw *BatchWriter) flushLoop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.stopTick:
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			if !bw.closed {
				bw.flushLocked()
			}
			bw.mu.Unlock()
		}
	}
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.batches {
		for _, group := range bw.live(batch) {
			if err := bw.commitArchive(group); err != nil {
				bw.fail(err)
				continue
			}
			bw.committed.Add(int64(len(group)))
		}
	}
}

// live groups the batch by archive in submit order, skipping writes whose
// archive was discarded after they were queued.
func (bw *BatchWriter) live(batch []pendingWrite) [][]pendingWrite {
	bw.genMu.Lock()
	defer bw.genMu.Unlock()
	index := make(map[int64]int)
	var groups [][]pendingWrite
	for _, w := range batch {
		if w.gen != bw.gens[w.archiveID] {
			bw.discarded.Add(1)
			continue
		}
		i, ok := index[w.archiveID]
		if !ok {
			i = len(groups)
			index[w.archiveID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], w)
	}
	return groups
}

func (bw *BatchWriter) commitArchive(group []pendingWrite) error {
	ctx := context.Background()
	if bw.db == nil {
		for _, w := range group {
			if err := w.fn(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, w := range group {
		if err := w.fn(ctx, tx); err != nil {
			return fmt.Errorf("archive %d: %w", group[0].archiveID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive %d (%d writes): %w", group[0].archiveID, len(group), err)
	}
	return nil
}

func (bw *BatchWriter) fail(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

// Close stops accepting writes, commits what is buffered and returns the
// first asynchronous error, if any.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.flushLocked()
	bw.mu.Unlock()

	close(bw.stopTick)
	close(bw.batches)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
