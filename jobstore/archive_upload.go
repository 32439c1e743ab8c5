package jobstore

import "database/sql"

// UploadStatus mirrors the original ArchiveUploadStatus enum.
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadUploaded UploadStatus = "uploaded"
	UploadExists   UploadStatus = "exists"
	UploadError    UploadStatus = "error"
)

// ArchiveUploadRow is one row of the archive_upload table, tracked by the
// SHA1 checksum computed over 8 KiB chunks (spec.md §4.3).
type ArchiveUploadRow struct {
	Checksum    string
	Path        string
	Status      UploadStatus
	ArcID       string
	NumFailures int
	LastUpdated float64
}

// UpsertArchiveUpload inserts or updates a row keyed by checksum.
func (s *Store) UpsertArchiveUpload(row ArchiveUploadRow) error {
	_, err := s.db.Exec(`
		INSERT INTO archive_upload (checksum, path, status, arcid, num_failures, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET
			path = excluded.path, status = excluded.status, arcid = excluded.arcid,
			num_failures = excluded.num_failures, last_updated = excluded.last_updated
	`, row.Checksum, row.Path, string(row.Status), row.ArcID, row.NumFailures, row.LastUpdated)
	return Error.Wrap(err)
}

// GetArchiveUploadByChecksum returns the row for checksum, or nil if absent.
func (s *Store) GetArchiveUploadByChecksum(checksum string) (*ArchiveUploadRow, error) {
	row := s.db.QueryRow(`
		SELECT checksum, path, status, arcid, num_failures, last_updated FROM archive_upload WHERE checksum = ?
	`, checksum)
	var out ArchiveUploadRow
	var status string
	var arcid sql.NullString
	if err := row.Scan(&out.Checksum, &out.Path, &status, &arcid, &out.NumFailures, &out.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	out.Status = UploadStatus(status)
	out.ArcID = arcid.String
	return &out, nil
}

// GetArchiveUploadsByStatus lists every row with the given status.
func (s *Store) GetArchiveUploadsByStatus(status UploadStatus) ([]ArchiveUploadRow, error) {
	rows, err := s.db.Query(`
		SELECT checksum, path, status, arcid, num_failures, last_updated FROM archive_upload WHERE status = ?
	`, string(status))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArchiveUploadRow
	for rows.Next() {
		var r ArchiveUploadRow
		var st string
		var arcid sql.NullString
		if err := rows.Scan(&r.Checksum, &r.Path, &st, &arcid, &r.NumFailures, &r.LastUpdated); err != nil {
			return nil, Error.Wrap(err)
		}
		r.Status = UploadStatus(st)
		r.ArcID = arcid.String
		out = append(out, r)
	}
	return out, Error.Wrap(rows.Err())
}

// DeleteArchiveUpload removes a row by checksum.
func (s *Store) DeleteArchiveUpload(checksum string) error {
	_, err := s.db.Exec(`DELETE FROM archive_upload WHERE checksum = ?`, checksum)
	return Error.Wrap(err)
}
