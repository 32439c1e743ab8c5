// Package vectorstore implements Satellite's Postgres-backed tables (C2):
// Page, SubarchiveMap, NhentaiArchive and ArchiveEmbeddingJob. It is
// grounded on satellite/service/nhdd.py's PostgresDatabaseService, with the
// embedding column encoded in pgvector's wire format by hand since the
// corpus carries no pgvector client binding (see DESIGN.md).
package vectorstore

import (
	"database/sql"
	"fmt"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"arcsat.dev/satellite/internal/dbutil"
	"arcsat.dev/satellite/internal/migrate"
)

// Error is the vectorstore package's error class.
var Error = errs.Class("vectorstore")

// Dimension is the embedding width img2vec produces.
const Dimension = 512

// Store wraps the Postgres handle backing C2.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (and migrates) the Postgres database at dsn.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := dbutil.OpenPostgres(dsn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	s := &Store{db: db, log: log.Named("vectorstore")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return Error.Wrap(s.db.Close())
}

func (s *Store) migrate() error {
	m := migrate.Migration{
		Table: "vectorstore_version",
		DB:    s.db,
		Steps: []migrate.Step{
			{
				Description: "initial schema",
				Version:     1,
				Action: func(tx *sql.Tx) error {
					for _, stmt := range []string{
						`CREATE EXTENSION IF NOT EXISTS vector`,
						`CREATE TABLE IF NOT EXISTS archive_embedding_job (
							arcid TEXT PRIMARY KEY,
							pages INTEGER NOT NULL,
							status TEXT NOT NULL
						)`,
						fmt.Sprintf(`CREATE TABLE IF NOT EXISTS page (
							arcid TEXT NOT NULL,
							page_num INTEGER NOT NULL,
							embedding vector(%d) NOT NULL,
							PRIMARY KEY (arcid, page_num)
						)`, Dimension),
						`CREATE INDEX IF NOT EXISTS page_embedding_hnsw
							ON page USING hnsw (embedding vector_cosine_ops)`,
						`CREATE TABLE IF NOT EXISTS subarchive_map (
							arcid TEXT PRIMARY KEY,
							parent_arcid TEXT
						)`,
						`CREATE TABLE IF NOT EXISTS nhentai_archive (
							arcid TEXT PRIMARY KEY,
							nhentai_id INTEGER,
							language TEXT NOT NULL,
							favorite_count INTEGER NOT NULL DEFAULT 0,
							category TEXT
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
