package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"jobradar-engine/internal/domain"
)

var ErrNotFound = errors.New("not found")

type SearchMode string

const (
	ModeText  SearchMode = "text"
	ModeRegex SearchMode = "regex"
	ModeFuzzy SearchMode = "fuzzy"
)

type SearchQuery struct {
	Mode     SearchMode
	Query    string
	Location string
	MaxAge   time.Duration // 0 = no age filter, measured against posted_at (last_seen when unknown)
	Limit    int
}

const selectCols = `url, title, employer, location, salary, posted_at, closing_at,
contract_type, working_pattern, description, job_ref, source, first_seen, last_seen`

// GetByURL looks a single entry up by its canonical URL.
func GetByURL(ctx context.Context, db *sql.DB, url string) (domain.Entry, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM jobs WHERE url = ?;`, url)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, ErrNotFound
	}
	return e, err
}

// Search runs a query against the index. Text mode matches in SQL;
// regex and fuzzy modes scan candidate rows in Go since sqlite carries
// neither natively.
func Search(ctx context.Context, db *sql.DB, q SearchQuery) ([]domain.Entry, error) {
	if q.Mode == "" {
		q.Mode = ModeText
	}
	if q.Limit <= 0 || q.Limit > 2000 {
		q.Limit = 200
	}

	var where []string
	var args []any

	if q.Location != "" {
		where = append(where, `location LIKE ?`)
		args = append(args, "%"+q.Location+"%")
	}
	if q.MaxAge > 0 {
		cutoff := time.Now().UTC().Add(-q.MaxAge).Format(time.RFC3339)
		where = append(where, `COALESCE(posted_at, last_seen) >= ?`)
		args = append(args, cutoff)
	}

	sqlLimit := q.Limit
	switch q.Mode {
	case ModeText:
		if q.Query != "" {
			where = append(where, `(title LIKE ? OR employer LIKE ? OR description LIKE ?)`)
			pat := "%" + q.Query + "%"
			args = append(args, pat, pat, pat)
		}
	case ModeRegex, ModeFuzzy:
		// Over-fetch, then filter below.
		sqlLimit = 2000
	default:
		return nil, fmt.Errorf("unknown search mode %q", q.Mode)
	}

	query := `SELECT ` + selectCols + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY COALESCE(posted_at, last_seen) DESC LIMIT ?;`
	args = append(args, sqlLimit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	var match func(domain.Entry) bool

	switch q.Mode {
	case ModeRegex:
		if q.Query != "" {
			re, err := regexp.Compile("(?i)" + q.Query)
			if err != nil {
				return nil, fmt.Errorf("bad pattern: %w", err)
			}
			match = func(e domain.Entry) bool {
				return re.MatchString(e.Title) || re.MatchString(e.Employer) || re.MatchString(e.Description)
			}
		}
	case ModeFuzzy:
		if q.Query != "" {
			needle := strings.ToLower(q.Query)
			match = func(e domain.Entry) bool { return fuzzyMatch(needle, e.Title) || fuzzyMatch(needle, e.Employer) }
		}
	}

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if match != nil && !match(e) {
			continue
		}
		out = append(out, e)
		if len(out) >= q.Limit {
			break
		}
	}
	return out, rows.Err()
}

// fuzzyMatch accepts close misspellings: any word of the haystack (or a
// window of words for multi-word needles) within an edit distance of
// roughly a third of the needle length.
func fuzzyMatch(needle, haystack string) bool {
	hay := strings.ToLower(haystack)
	if strings.Contains(hay, needle) {
		return true
	}
	budget := len(needle) / 3
	if budget < 1 {
		budget = 1
	}
	words := strings.Fields(hay)
	n := len(strings.Fields(needle))
	if n < 1 {
		return false
	}
	for i := 0; i+n <= len(words); i++ {
		window := strings.Join(words[i:i+n], " ")
		if levenshtein.ComputeDistance(needle, window) <= budget {
			return true
		}
	}
	return false
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type Stats struct {
	Total     int           `json:"total"`
	BySource  []SourceCount `json:"bySource"`
	OldestUTC string        `json:"oldestFirstSeen,omitempty"`
	NewestUTC string        `json:"newestLastSeen,omitempty"`
}

func IndexStats(ctx context.Context, db *sql.DB) (Stats, error) {
	var st Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs;`).Scan(&st.Total); err != nil {
		return st, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM jobs GROUP BY source ORDER BY COUNT(*) DESC;`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return st, err
		}
		st.BySource = append(st.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	if st.Total > 0 {
		if err := db.QueryRowContext(ctx,
			`SELECT MIN(first_seen), MAX(last_seen) FROM jobs;`).Scan(&st.OldestUTC, &st.NewestUTC); err != nil {
			return st, err
		}
	}
	return st, nil
}

// NewSince returns entries first indexed after t, newest first.
func NewSince(ctx context.Context, db *sql.DB, t time.Time) ([]domain.Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM jobs WHERE first_seen > ? ORDER BY first_seen DESC;`,
		t.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeStale deletes entries no fetch has confirmed within the
// retention window. This is the index's only routine deletion path.
func PurgeStale(db *sql.DB, retention time.Duration) (deleted int64, err error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)
	res, err := db.Exec(`DELETE FROM jobs WHERE last_seen < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteSource clears one source's entries ahead of a forced reindex.
func DeleteSource(db *sql.DB, source string) (int64, error) {
	res, err := db.Exec(`DELETE FROM jobs WHERE source = ?;`, source)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteAll drops every entry ahead of a forced full reindex.
func DeleteAll(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM jobs;`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (domain.Entry, error) {
	var e domain.Entry
	var postedAt, closingAt sql.NullString
	var firstSeen, lastSeen string

	err := r.Scan(
		&e.URL, &e.Title, &e.Employer, &e.Location, &e.Salary,
		&postedAt, &closingAt,
		&e.ContractType, &e.WorkingPattern, &e.Description, &e.JobRef, &e.Source,
		&firstSeen, &lastSeen,
	)
	if err != nil {
		return e, err
	}

	e.PostedAt = parseNullTime(postedAt)
	e.ClosingAt = parseNullTime(closingAt)
	e.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	e.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	e.FetchedAt = e.LastSeen
	return e, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
