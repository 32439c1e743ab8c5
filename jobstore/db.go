// Package jobstore implements Satellite's SQLite-backed job tables (C1):
// ArchiveScan, ArchiveUpload, MetadataPluginTask and AuthRecord. It is
// grounded on the original satellite_server/service/database.py schema.
// Store methods do not retry failed statements; lock contention is
// absorbed only by the busy timeout dbutil.OpenSQLite sets.
package jobstore

import (
	"database/sql"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"arcsat.dev/satellite/internal/dbutil"
	"arcsat.dev/satellite/internal/migrate"
)

// Error is the jobstore package's error class.
var Error = errs.Class("jobstore")

// Store wraps the SQLite handle backing C1.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (and migrates) the SQLite database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := dbutil.OpenSQLite(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	s := &Store{db: db, log: log.Named("jobstore")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return Error.Wrap(s.db.Close())
}

func (s *Store) migrate() error {
	m := migrate.Migration{
		Table: "jobstore_version",
		DB:    s.db,
		Steps: []migrate.Step{
			{
				Description: "initial schema",
				Version:     1,
				Action: func(tx *sql.Tx) error {
					for _, stmt := range []string{
						`CREATE TABLE IF NOT EXISTS archive_scan (
							md5 TEXT PRIMARY KEY,
							path TEXT NOT NULL,
							status TEXT NOT NULL,
							mtime REAL NOT NULL
						)`,
						`CREATE TABLE IF NOT EXISTS archive_upload (
							checksum TEXT PRIMARY KEY,
							path TEXT NOT NULL,
							status TEXT NOT NULL,
							arcid TEXT,
							num_failures INTEGER NOT NULL DEFAULT 0,
							last_updated REAL NOT NULL DEFAULT 0
						)`,
						`CREATE TABLE IF NOT EXISTS metadata_plugin_task (
							arcid TEXT NOT NULL,
							plugin TEXT NOT NULL,
							status TEXT NOT NULL,
							num_failures INTEGER NOT NULL DEFAULT 0,
							last_updated REAL NOT NULL DEFAULT 0,
							PRIMARY KEY (arcid, plugin)
						)`,
						`CREATE TABLE IF NOT EXISTS auth (
							id INTEGER PRIMARY KEY CHECK (id = 1),
							key_hash TEXT NOT NULL
						)`,
					} {
						if _, err := tx.Exec(stmt); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}
	return m.Run()
}
