package store

import (
	"database/sql"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	// The URL is the listing identity. All timestamps are RFC3339 TEXT;
	// posted_at and closing_at stay NULL when the board didn't say.
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  url TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  employer TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  posted_at TEXT,
  closing_at TEXT,
  contract_type TEXT NOT NULL DEFAULT '',
  working_pattern TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  job_ref TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL,
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS notify_state (
  channel TEXT PRIMARY KEY,
  last_notified_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_first_seen ON jobs(first_seen);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs(last_seen);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_posted_at ON jobs(posted_at);`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	// Mark schema v1
	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}
