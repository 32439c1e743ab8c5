// Package dbutil centralizes the connection-string tuning Satellite needs
// for its two SQL backends.
package dbutil

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/zeebo/errs"
)

// Error is the dbutil package's error class.
var Error = errs.Class("dbutil")

// OpenSQLite opens path in WAL mode with a generous busy timeout so that
// concurrent job-table writers retry internally instead of surfacing
// SQLITE_BUSY to callers. The §5 "retried indefinitely" invariant for
// database-locked errors depends on WAL mode: without it, a single writer
// would starve every reader for the duration of its transaction.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		url.PathEscape(path), 30000)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	// go-sqlite3 connections are not safe to share across goroutines doing
	// concurrent writes; a single connection plus WAL-mode readers matches
	// the job-store's actual access pattern (few writers, many readers).
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, Error.Wrap(err)
	}
	return db, nil
}
