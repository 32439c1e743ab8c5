// Package pipeline implements Satellite's job dispatcher (C4): a
// reader/writer lock plus four named non-blocking mutexes guarding the
// long-running passes (scan, upload, metadata, embedding/dedup), and a
// submit/dispatch surface that hands callers a queue receipt instead of
// blocking.
package pipeline

import (
	"sync"

	"github.com/zeebo/errs"
)

// Error is the pipeline package's error class.
var Error = errs.Class("pipeline")

// Named locks, one per long-running pass (§5).
const (
	LockPageEmbeddings    = "page_embeddings"
	LockSubarchives       = "subarchives"
	LockNhentaiArchives   = "nhentai_archives_data"
	LockContents          = "contents"
)

// LockTable is a set of named non-blocking mutexes plus one real
// sync.RWMutex for the reader/writer split between scan (reader) and
// delete-corrupted (writer) passes. Acquiring a named lock never queues: a
// contended Try returns false immediately, which callers turn into an HTTP
// 423 Locked response rather than waiting.
type LockTable struct {
	rw sync.RWMutex

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockTable builds a LockTable with the four named locks pre-created.
func NewLockTable() *LockTable {
	t := &LockTable{locks: make(map[string]chan struct{})}
	for _, name := range []string{LockPageEmbeddings, LockSubarchives, LockNhentaiArchives, LockContents} {
		t.locks[name] = make(chan struct{}, 1)
		t.locks[name] <- struct{}{}
	}
	return t
}

// TryLock attempts to acquire the named lock without blocking. It reports
// false immediately if already held.
func (t *LockTable) TryLock(name string) bool {
	t.mu.Lock()
	ch, ok := t.locks[name]
	t.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Unlock releases the named lock. Unlocking a lock that isn't held panics,
// matching the contract of sync.Mutex.Unlock.
func (t *LockTable) Unlock(name string) {
	t.mu.Lock()
	ch, ok := t.locks[name]
	t.mu.Unlock()
	if !ok {
		panic("pipeline: unlock of unknown lock " + name)
	}
	select {
	case ch <- struct{}{}:
	default:
		panic("pipeline: unlock of not-locked " + name)
	}
}

// TryRLock acquires the reader side of the scan/delete RW split. It never
// blocks, returning false if a writer currently holds the lock.
func (t *LockTable) TryRLock() bool {
	return t.rw.TryRLock()
}

// RUnlock releases the reader side.
func (t *LockTable) RUnlock() {
	t.rw.RUnlock()
}

// TryWLock acquires the writer side. It never blocks.
func (t *LockTable) TryWLock() bool {
	return t.rw.TryLock()
}

// WUnlock releases the writer side.
func (t *LockTable) WUnlock() {
	t.rw.Unlock()
}
