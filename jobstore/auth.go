package jobstore

import (
	"database/sql"

	"golang.org/x/crypto/bcrypt"
)

// SetAPIKey hashes and persists the single bearer-token row (§6
// SATELLITE_API_KEY). There is only ever one AuthRecord: id is pinned to 1
// by the schema's CHECK constraint.
func (s *Store) SetAPIKey(key string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return Error.Wrap(err)
	}
	_, err = s.db.Exec(`
		INSERT INTO auth (id, key_hash) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET key_hash = excluded.key_hash
	`, string(hash))
	return Error.Wrap(err)
}

// VerifyAPIKey reports whether key matches the stored AuthRecord. It
// returns false, nil when no AuthRecord has been set yet.
func (s *Store) VerifyAPIKey(key string) (bool, error) {
	row := s.db.QueryRow(`SELECT key_hash FROM auth WHERE id = 1`)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, Error.Wrap(err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil, nil
}
