// Package migrate applies ordered, idempotent schema steps against a
// *sql.DB. It is intentionally tiny: Satellite owns two small schemas
// (SQLite job tables, Postgres vector tables) and does not need a
// general-purpose migration framework.
package migrate

import (
	"database/sql"
	"fmt"

	"github.com/zeebo/errs"
)

// Error is the migrate package's error class.
var Error = errs.Class("migrate")

// Step is one forward-only schema change.
type Step struct {
	Description string
	Version     int
	Action      func(tx *sql.Tx) error
}

// Migration is an ordered list of Steps applied against a single database.
type Migration struct {
	Table string // name of the version-tracking table
	DB    *sql.DB
	Steps []Step
}

// Run creates the version table if needed and applies every Step whose
// Version is greater than the current stored version, each inside its own
// transaction.
func (m *Migration) Run() error {
	if _, err := m.DB.Exec(`CREATE TABLE IF NOT EXISTS ` + m.Table + ` (version INTEGER NOT NULL)`); err != nil {
		return Error.Wrap(err)
	}

	current, err := m.currentVersion()
	if err != nil {
		return Error.Wrap(err)
	}

	for _, step := range m.Steps {
		if step.Version <= current {
			continue
		}
		tx, err := m.DB.Begin()
		if err != nil {
			return Error.Wrap(err)
		}
		if err := step.Action(tx); err != nil {
			_ = tx.Rollback()
			return Error.Wrap(fmt.Errorf("step %d (%s): %w", step.Version, step.Description, err))
		}
		if _, err := tx.Exec(`DELETE FROM `+m.Table); err != nil {
			_ = tx.Rollback()
			return Error.Wrap(err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (version) VALUES (%d)`, m.Table, step.Version)); err != nil {
			_ = tx.Rollback()
			return Error.Wrap(err)
		}
		if err := tx.Commit(); err != nil {
			return Error.Wrap(err)
		}
		current = step.Version
	}
	return nil
}

func (m *Migration) currentVersion() (int, error) {
	row := m.DB.QueryRow(`SELECT version FROM ` + m.Table + ` LIMIT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}
