package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Band 5 Staff Nurse", CleanText("  Band 5  Staff\n\tNurse  "))
	assert.Equal(t, "", CleanText("   \n "))
}

func TestCanonicalURL(t *testing.T) {
	t.Run("strips tracking and fragment", func(t *testing.T) {
		got := CanonicalURL("HTTPS://Example.COM/job?utm_source=x&b=2&a=1&gclid=abc#apply")
		assert.Equal(t, "https://example.com/job?a=1&b=2", got)
	})

	t.Run("same listing from two campaigns collapses", func(t *testing.T) {
		a := CanonicalURL("https://uk.indeed.com/viewjob?jk=abc123&utm_campaign=mail")
		b := CanonicalURL("https://uk.indeed.com/viewjob?utm_source=feed&jk=abc123")
		assert.Equal(t, a, b)
	})

	t.Run("garbage passes through", func(t *testing.T) {
		assert.Equal(t, "::notaurl", CanonicalURL("::notaurl"))
	})
}

func TestParsePostedDate(t *testing.T) {
	now := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)

	t.Run("absolute", func(t *testing.T) {
		got := ParsePostedDate("10 February 2026", now)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), got.UTC())
	})

	t.Run("relative days", func(t *testing.T) {
		got := ParsePostedDate("Posted 3 days ago", now)
		require.NotNil(t, got)
		assert.Equal(t, now.AddDate(0, 0, -3), *got)
	})

	t.Run("today and yesterday", func(t *testing.T) {
		require.NotNil(t, ParsePostedDate("Just posted", now))
		got := ParsePostedDate("yesterday", now)
		require.NotNil(t, got)
		assert.Equal(t, now.AddDate(0, 0, -1), *got)
	})

	t.Run("30+ days ago", func(t *testing.T) {
		got := ParsePostedDate("30 days ago+", now)
		require.NotNil(t, got)
		assert.Equal(t, now.AddDate(0, 0, -30), *got)
	})

	t.Run("unreadable returns nil", func(t *testing.T) {
		assert.Nil(t, ParsePostedDate("competitive", now))
		assert.Nil(t, ParsePostedDate("", now))
	})
}
