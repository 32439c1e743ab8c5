package vectorstore

import (
	"database/sql"

	"arcsat.dev/satellite/internal/dbutil"
)

// Page is one page-level embedding row.
type Page struct {
	ArcID     string
	PageNum   int
	Embedding []float32
}

// UpsertPage inserts or replaces a page's embedding.
func (s *Store) UpsertPage(p Page) error {
	_, err := s.db.Exec(`
		INSERT INTO page (arcid, page_num, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (arcid, page_num) DO UPDATE SET embedding = excluded.embedding
	`, p.ArcID, p.PageNum, dbutil.EncodeVector(p.Embedding))
	return Error.Wrap(err)
}

// CountPages returns how many Page rows exist for arcid, used by the
// embedding engine to decide whether ingestion already completed, is
// partial, or hasn't started.
func (s *Store) CountPages(arcid string) (int, error) {
	row := s.db.QueryRow(`SELECT count(*) FROM page WHERE arcid = $1`, arcid)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, Error.Wrap(err)
	}
	return n, nil
}

// DeletePages removes every Page row for arcid, used to redo a partially
// ingested archive from scratch.
func (s *Store) DeletePages(arcid string) error {
	_, err := s.db.Exec(`DELETE FROM page WHERE arcid = $1`, arcid)
	return Error.Wrap(err)
}

// GetFirstPage returns the page_num=1 embedding for arcid, used by
// is_subarchive_of as the anchor page for candidate lookup.
func (s *Store) GetFirstPage(arcid string) (*Page, error) {
	row := s.db.QueryRow(`SELECT arcid, page_num, embedding FROM page WHERE arcid = $1 AND page_num = 1`, arcid)
	var p Page
	var raw string
	if err := row.Scan(&p.ArcID, &p.PageNum, &raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	vec, err := dbutil.DecodeVector(raw)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	p.Embedding = vec
	return &p, nil
}

// GetPages returns every page of arcid ordered by page_num.
func (s *Store) GetPages(arcid string) ([]Page, error) {
	rows, err := s.db.Query(`SELECT arcid, page_num, embedding FROM page WHERE arcid = $1 ORDER BY page_num`, arcid)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []Page
	for rows.Next() {
		var p Page
		var raw string
		if err := rows.Scan(&p.ArcID, &p.PageNum, &raw); err != nil {
			return nil, Error.Wrap(err)
		}
		vec, err := dbutil.DecodeVector(raw)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		p.Embedding = vec
		out = append(out, p)
	}
	return out, Error.Wrap(rows.Err())
}

// CandidatesBySimilarFirstPage returns arcids (excluding self) whose first
// page lies within the cosine-distance radius of arcid's first page,
// ordered by distance. This is the candidate-peer query
// get_arcids_by_page_similar_to_first_page_2 is grounded on: it narrows the
// O(n^2) subsequence comparison down to plausible peers before the
// expensive full-sequence check runs.
func (s *Store) CandidatesBySimilarFirstPage(arcid string, embedding []float32, maxDistance float64, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT arcid FROM page
		WHERE page_num = 1 AND arcid != $1 AND embedding <=> $2 < $3
		ORDER BY embedding <=> $2
		LIMIT $4
	`, arcid, dbutil.EncodeVector(embedding), maxDistance, limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, a)
	}
	return out, Error.Wrap(rows.Err())
}
