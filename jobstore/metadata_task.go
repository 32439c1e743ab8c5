package jobstore

import (
	"database/sql"
	"math"
)

// MetadataPluginStatus mirrors the original MetadataPluginStatus enum.
type MetadataPluginStatus string

const (
	MetadataPending  MetadataPluginStatus = "pending"
	MetadataComplete MetadataPluginStatus = "complete"
	MetadataNotFound MetadataPluginStatus = "not_found"
	MetadataError    MetadataPluginStatus = "error"
)

// MetadataPluginTaskRow is one row of the metadata_plugin_task table, keyed
// by (arcid, plugin).
type MetadataPluginTaskRow struct {
	ArcID       string
	Plugin      string
	Status      MetadataPluginStatus
	NumFailures int
	LastUpdated float64
}

// UpsertMetadataPluginTask inserts or updates a row.
func (s *Store) UpsertMetadataPluginTask(row MetadataPluginTaskRow) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata_plugin_task (arcid, plugin, status, num_failures, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(arcid, plugin) DO UPDATE SET
			status = excluded.status, num_failures = excluded.num_failures, last_updated = excluded.last_updated
	`, row.ArcID, row.Plugin, string(row.Status), row.NumFailures, row.LastUpdated)
	return Error.Wrap(err)
}

// GetMetadataPluginTask returns the row for (arcid, plugin), or nil if absent.
func (s *Store) GetMetadataPluginTask(arcid, plugin string) (*MetadataPluginTaskRow, error) {
	row := s.db.QueryRow(`
		SELECT arcid, plugin, status, num_failures, last_updated FROM metadata_plugin_task
		WHERE arcid = ? AND plugin = ?
	`, arcid, plugin)
	var out MetadataPluginTaskRow
	var status string
	if err := row.Scan(&out.ArcID, &out.Plugin, &status, &out.NumFailures, &out.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	out.Status = MetadataPluginStatus(status)
	return &out, nil
}

// DueNotFoundRetries returns every not_found task whose exponential backoff
// window has elapsed: last_updated + 86400 * 2^num_failures < now. SQLite
// lacks a portable POWER() builtin across go-sqlite3 builds, so the backoff
// predicate is evaluated here instead of pushed into SQL, matching the
// formula from satellite_server/service/database.py's get_metadata tasks.
func (s *Store) DueNotFoundRetries(now float64) ([]MetadataPluginTaskRow, error) {
	rows, err := s.db.Query(`
		SELECT arcid, plugin, status, num_failures, last_updated FROM metadata_plugin_task WHERE status = ?
	`, string(MetadataNotFound))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []MetadataPluginTaskRow
	for rows.Next() {
		var r MetadataPluginTaskRow
		var st string
		if err := rows.Scan(&r.ArcID, &r.Plugin, &st, &r.NumFailures, &r.LastUpdated); err != nil {
			return nil, Error.Wrap(err)
		}
		r.Status = MetadataPluginStatus(st)
		window := 86400 * math.Pow(2, float64(r.NumFailures))
		if r.LastUpdated+window < now {
			out = append(out, r)
		}
	}
	return out, Error.Wrap(rows.Err())
}

// DeleteMetadataPluginTask removes a row by (arcid, plugin).
func (s *Store) DeleteMetadataPluginTask(arcid, plugin string) error {
	_, err := s.db.Exec(`DELETE FROM metadata_plugin_task WHERE arcid = ? AND plugin = ?`, arcid, plugin)
	return Error.Wrap(err)
}
