package jobstore

import "database/sql"

// ScanStatus mirrors satellite_server.models.ArchiveScanStatus.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanOK        ScanStatus = "ok"
	ScanCorrupted ScanStatus = "corrupted"
	ScanError     ScanStatus = "error"
)

// ArchiveScanRow is one row of the archive_scan table.
type ArchiveScanRow struct {
	MD5    string
	Path   string
	Status ScanStatus
	MTime  float64
}

// UpsertArchiveScan inserts or updates a scan row by md5, matching the
// original's `INSERT OR IGNORE ... ON CONFLICT DO UPDATE` pattern.
func (s *Store) UpsertArchiveScan(md5, path string, status ScanStatus, mtime float64) error {
	_, err := s.db.Exec(`
		INSERT INTO archive_scan (md5, path, status, mtime) VALUES (?, ?, ?, ?)
		ON CONFLICT(md5) DO UPDATE SET path = excluded.path, status = excluded.status, mtime = excluded.mtime
	`, md5, path, string(status), mtime)
	return Error.Wrap(err)
}

// GetArchiveScanByMD5 returns the row for md5, or nil if absent.
func (s *Store) GetArchiveScanByMD5(md5 string) (*ArchiveScanRow, error) {
	row := s.db.QueryRow(`SELECT md5, path, status, mtime FROM archive_scan WHERE md5 = ?`, md5)
	var out ArchiveScanRow
	var status string
	if err := row.Scan(&out.MD5, &out.Path, &status, &out.MTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	out.Status = ScanStatus(status)
	return &out, nil
}

// GetArchiveScansByStatus lists every row with the given status.
func (s *Store) GetArchiveScansByStatus(status ScanStatus) ([]ArchiveScanRow, error) {
	rows, err := s.db.Query(`SELECT md5, path, status, mtime FROM archive_scan WHERE status = ?`, string(status))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArchiveScanRow
	for rows.Next() {
		var r ArchiveScanRow
		var st string
		if err := rows.Scan(&r.MD5, &r.Path, &st, &r.MTime); err != nil {
			return nil, Error.Wrap(err)
		}
		r.Status = ScanStatus(st)
		out = append(out, r)
	}
	return out, Error.Wrap(rows.Err())
}

// DeleteArchiveScan removes a row by md5, used when the underlying file
// has vanished from disk since the last scan.
func (s *Store) DeleteArchiveScan(md5 string) error {
	_, err := s.db.Exec(`DELETE FROM archive_scan WHERE md5 = ?`, md5)
	return Error.Wrap(err)
}
