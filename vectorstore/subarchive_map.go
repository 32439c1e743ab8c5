package vectorstore

import "database/sql"

// SetParent records that arcid is a subsequence of parentArcid, per
// compute_subarchives. A nil parentArcid marks arcid as its own root.
func (s *Store) SetParent(arcid string, parentArcid *string) error {
	_, err := s.db.Exec(`
		INSERT INTO subarchive_map (arcid, parent_arcid) VALUES ($1, $2)
		ON CONFLICT (arcid) DO UPDATE SET parent_arcid = excluded.parent_arcid
	`, arcid, parentArcid)
	return Error.Wrap(err)
}

// GetRootSubarchive walks the parent chain from arcid to its root, the way
// get_root_suparchive's recursive CTE does. It returns arcid unchanged if
// arcid has no entry or is already a root.
func (s *Store) GetRootSubarchive(arcid string) (string, error) {
	row := s.db.QueryRow(`
		WITH RECURSIVE chain(arcid, parent_arcid, depth) AS (
			SELECT arcid, parent_arcid, 0 FROM subarchive_map WHERE arcid = $1
			UNION ALL
			SELECT m.arcid, m.parent_arcid, c.depth + 1
			FROM subarchive_map m
			JOIN chain c ON m.arcid = c.parent_arcid
			WHERE c.depth < 1000
		)
		SELECT arcid FROM chain WHERE parent_arcid IS NULL
		ORDER BY depth DESC LIMIT 1
	`, arcid)
	var root string
	if err := row.Scan(&root); err != nil {
		if err == sql.ErrNoRows {
			return arcid, nil
		}
		return "", Error.Wrap(err)
	}
	return root, nil
}

// GetArchivesNotInSubarchiveMap returns arcids present in nhentai_archive
// that have no subarchive_map entry yet, the pending queue for
// compute_subarchives.
func (s *Store) GetArchivesNotInSubarchiveMap(language string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT n.arcid FROM nhentai_archive n
		LEFT JOIN subarchive_map m ON n.arcid = m.arcid
		WHERE m.arcid IS NULL AND n.language = $1
	`, language)
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

// ListRoots returns every arcid recorded as its own root (parent_arcid IS
// NULL), the candidate set GetDuplicateArchives checks for children.
func (s *Store) ListRoots() ([]string, error) {
	rows, err := s.db.Query(`SELECT arcid FROM subarchive_map WHERE parent_arcid IS NULL`)
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

// Children returns every arcid whose parent_arcid is root.
func (s *Store) Children(root string) ([]string, error) {
	rows, err := s.db.Query(`SELECT arcid FROM subarchive_map WHERE parent_arcid = $1`, root)
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
