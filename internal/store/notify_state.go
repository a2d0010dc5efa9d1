package store

import (
	"database/sql"
	"errors"
	"time"
)

// LastNotifiedAt returns the high-water mark for a notification channel.
// A channel that has never sent gets the zero time, which makes every
// indexed entry count as new on the first run.
func LastNotifiedAt(db *sql.DB, channel string) (time.Time, error) {
	var raw string
	err := db.QueryRow(
		`SELECT last_notified_at FROM notify_state WHERE channel = ?;`, channel).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

func SetLastNotifiedAt(db *sql.DB, channel string, t time.Time) error {
	_, err := db.Exec(`
INSERT INTO notify_state (channel, last_notified_at) VALUES (?, ?)
ON CONFLICT(channel) DO UPDATE SET last_notified_at = excluded.last_notified_at;`,
		channel, t.UTC().Format(time.RFC3339))
	return err
}
