package store

import (
	"database/sql"
	"fmt"
	"time"

	"jobradar-engine/internal/domain"
)

// UpsertListing indexes one listing. A new URL inserts with
// first_seen = last_seen = fetch time; a known URL keeps its first_seen
// and merges fields, preferring the incoming value only when non-empty
// so a board that stopped publishing a salary doesn't erase the one we
// already know.
func UpsertListing(db *sql.DB, l domain.Listing) (added bool, err error) {
	fetched := l.FetchedAt.UTC().Format(time.RFC3339)

	_, err = db.Exec(`
INSERT INTO jobs (url, title, employer, location, salary, posted_at, closing_at,
                  contract_type, working_pattern, description, job_ref, source,
                  first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
  title           = COALESCE(NULLIF(excluded.title, ''), jobs.title),
  employer        = COALESCE(NULLIF(excluded.employer, ''), jobs.employer),
  location        = COALESCE(NULLIF(excluded.location, ''), jobs.location),
  salary          = COALESCE(NULLIF(excluded.salary, ''), jobs.salary),
  posted_at       = COALESCE(excluded.posted_at, jobs.posted_at),
  closing_at      = COALESCE(excluded.closing_at, jobs.closing_at),
  contract_type   = COALESCE(NULLIF(excluded.contract_type, ''), jobs.contract_type),
  working_pattern = COALESCE(NULLIF(excluded.working_pattern, ''), jobs.working_pattern),
  description     = COALESCE(NULLIF(excluded.description, ''), jobs.description),
  job_ref         = COALESCE(NULLIF(excluded.job_ref, ''), jobs.job_ref),
  source          = excluded.source,
  last_seen       = excluded.last_seen;`,
		l.URL, l.Title, l.Employer, l.Location, l.Salary,
		timePtr(l.PostedAt), timePtr(l.ClosingAt),
		l.ContractType, l.WorkingPattern, l.Description, l.JobRef, l.Source,
		fetched, fetched,
	)
	if err != nil {
		return false, fmt.Errorf("upsert job: %w", err)
	}

	// Inserted rows have first_seen == last_seen == this fetch time.
	var firstSeen string
	if err := db.QueryRow(`SELECT first_seen FROM jobs WHERE url = ?;`, l.URL).Scan(&firstSeen); err != nil {
		return false, err
	}
	return firstSeen == fetched, nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
