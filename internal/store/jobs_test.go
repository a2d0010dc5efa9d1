package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobradar-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func listing(url, title string, fetched time.Time) domain.Listing {
	return domain.Listing{
		URL:       url,
		Title:     title,
		Employer:  "Acme Trust",
		Location:  "Leeds LS1 4AP",
		Source:    "nhs",
		FetchedAt: fetched,
	}
}

func TestUpsertInsertThenMerge(t *testing.T) {
	db := openTestDB(t)
	t0 := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

	l := listing("https://example.com/j/1", "Staff Nurse", t0)
	l.Salary = "£28,000"

	added, err := UpsertListing(db.Pool, l)
	require.NoError(t, err)
	assert.True(t, added)

	// Same URL a day later: not new, last_seen moves, first_seen doesn't.
	l2 := listing("https://example.com/j/1", "Staff Nurse (Band 5)", t0.Add(24*time.Hour))
	l2.Salary = "" // board dropped the salary this time
	added, err = UpsertListing(db.Pool, l2)
	require.NoError(t, err)
	assert.False(t, added)

	e, err := GetByURL(context.Background(), db.Pool, "https://example.com/j/1")
	require.NoError(t, err)
	assert.Equal(t, "Staff Nurse (Band 5)", e.Title, "non-empty incoming field wins")
	assert.Equal(t, "£28,000", e.Salary, "empty incoming field never clobbers")
	assert.Equal(t, t0, e.FirstSeen)
	assert.Equal(t, t0.Add(24*time.Hour), e.LastSeen)
}

func TestGetByURLNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := GetByURL(context.Background(), db.Pool, "https://example.com/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSince(t *testing.T) {
	db := openTestDB(t)
	t0 := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)} {
		_, err := UpsertListing(db.Pool, listing(
			"https://example.com/j/"+string(rune('a'+i)), "Role", ts))
		require.NoError(t, err)
	}

	fresh, err := NewSince(context.Background(), db.Pool, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	// Newest first.
	assert.True(t, fresh[0].FirstSeen.After(fresh[1].FirstSeen))

	all, err := NewSince(context.Background(), db.Pool, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPurgeStaleUsesLastSeen(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	_, err := UpsertListing(db.Pool, listing("https://example.com/old", "Old", now.Add(-90*24*time.Hour)))
	require.NoError(t, err)
	_, err = UpsertListing(db.Pool, listing("https://example.com/new", "New", now))
	require.NoError(t, err)

	// The old entry was re-confirmed recently: it must survive.
	_, err = UpsertListing(db.Pool, listing("https://example.com/old-refetched", "Old2", now.Add(-90*24*time.Hour)))
	require.NoError(t, err)
	_, err = UpsertListing(db.Pool, listing("https://example.com/old-refetched", "Old2", now))
	require.NoError(t, err)

	deleted, err := PurgeStale(db.Pool, 60*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = GetByURL(context.Background(), db.Pool, "https://example.com/old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = GetByURL(context.Background(), db.Pool, "https://example.com/old-refetched")
	assert.NoError(t, err)
}

func TestSearchModes(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	seed := []struct{ url, title, location string }{
		{"https://example.com/1", "Data Analyst", "Leeds"},
		{"https://example.com/2", "Senior Data Engineer", "York"},
		{"https://example.com/3", "Ward Clerk", "Leeds"},
	}
	for _, s := range seed {
		l := listing(s.url, s.title, now)
		l.Location = s.location
		_, err := UpsertListing(db.Pool, l)
		require.NoError(t, err)
	}

	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		got, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeText, Query: "data"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("text with location", func(t *testing.T) {
		got, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeText, Query: "data", Location: "Leeds"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Data Analyst", got[0].Title)
	})

	t.Run("regex", func(t *testing.T) {
		got, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeRegex, Query: `^senior\s+data`})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Senior Data Engineer", got[0].Title)
	})

	t.Run("regex rejects bad pattern", func(t *testing.T) {
		_, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeRegex, Query: `(`})
		assert.Error(t, err)
	})

	t.Run("fuzzy tolerates a typo", func(t *testing.T) {
		got, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeFuzzy, Query: "anaylst"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Data Analyst", got[0].Title)
	})

	t.Run("max age filters on posted or seen", func(t *testing.T) {
		old := listing("https://example.com/stale", "Data Historian", now.Add(-30*24*time.Hour))
		_, err := UpsertListing(db.Pool, old)
		require.NoError(t, err)

		got, err := Search(ctx, db.Pool, SearchQuery{Mode: ModeText, Query: "data", MaxAge: 7 * 24 * time.Hour})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestIndexStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	st, err := IndexStats(context.Background(), db.Pool)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)

	l := listing("https://example.com/1", "A", now)
	_, err = UpsertListing(db.Pool, l)
	require.NoError(t, err)
	dwp := listing("https://example.com/2", "B", now)
	dwp.Source = "dwp"
	_, err = UpsertListing(db.Pool, dwp)
	require.NoError(t, err)

	st, err = IndexStats(context.Background(), db.Pool)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Len(t, st.BySource, 2)
	assert.NotEmpty(t, st.OldestUTC)
}

func TestDeleteSourceAndAll(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	for i, src := range []string{"nhs", "nhs", "dwp"} {
		l := listing("https://example.com/"+src+"/"+string(rune('0'+i)), "X", now)
		l.Source = src
		_, err := UpsertListing(db.Pool, l)
		require.NoError(t, err)
	}

	n, err := DeleteSource(db.Pool, "nhs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = DeleteAll(db.Pool)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNotifyState(t *testing.T) {
	db := openTestDB(t)

	last, err := LastNotifiedAt(db.Pool, "whatsapp")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	mark := time.Date(2026, 2, 22, 8, 30, 0, 0, time.UTC)
	require.NoError(t, SetLastNotifiedAt(db.Pool, "whatsapp", mark))

	last, err = LastNotifiedAt(db.Pool, "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, mark, last)

	// Advancing overwrites.
	require.NoError(t, SetLastNotifiedAt(db.Pool, "whatsapp", mark.Add(time.Hour)))
	last, err = LastNotifiedAt(db.Pool, "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, mark.Add(time.Hour), last)
}
