package vectorstore

import "database/sql"

// EmbeddingJobStatus mirrors ArchiveEmbeddingJobStatus.
type EmbeddingJobStatus string

const (
	EmbeddingPending   EmbeddingJobStatus = "pending"
	EmbeddingComplete  EmbeddingJobStatus = "complete"
	EmbeddingSkipped   EmbeddingJobStatus = "skipped"
	EmbeddingError     EmbeddingJobStatus = "error"
)

// EmbeddingJob is one row of archive_embedding_job: the expected page count
// for an arcid, used to detect resumable/partial ingestion.
type EmbeddingJob struct {
	ArcID  string
	Pages  int
	Status EmbeddingJobStatus
}

// UpsertEmbeddingJob inserts or updates a job row.
func (s *Store) UpsertEmbeddingJob(j EmbeddingJob) error {
	_, err := s.db.Exec(`
		INSERT INTO archive_embedding_job (arcid, pages, status) VALUES ($1, $2, $3)
		ON CONFLICT (arcid) DO UPDATE SET pages = excluded.pages, status = excluded.status
	`, j.ArcID, j.Pages, string(j.Status))
	return Error.Wrap(err)
}

// GetEmbeddingJob returns the job row for arcid, or nil if absent.
func (s *Store) GetEmbeddingJob(arcid string) (*EmbeddingJob, error) {
	row := s.db.QueryRow(`SELECT arcid, pages, status FROM archive_embedding_job WHERE arcid = $1`, arcid)
	var j EmbeddingJob
	var status string
	if err := row.Scan(&j.ArcID, &j.Pages, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	j.Status = EmbeddingJobStatus(status)
	return &j, nil
}

// GetEmbeddingJobsByStatus lists every job with the given status.
func (s *Store) GetEmbeddingJobsByStatus(status EmbeddingJobStatus) ([]EmbeddingJob, error) {
	rows, err := s.db.Query(`SELECT arcid, pages, status FROM archive_embedding_job WHERE status = $1`, string(status))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmbeddingJob
	for rows.Next() {
		var j EmbeddingJob
		var st string
		if err := rows.Scan(&j.ArcID, &j.Pages, &st); err != nil {
			return nil, Error.Wrap(err)
		}
		j.Status = EmbeddingJobStatus(st)
		out = append(out, j)
	}
	return out, Error.Wrap(rows.Err())
}
