package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobradar-engine/internal/domain"
	"jobradar-engine/internal/notify"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/store"
)

type stubConn struct {
	name     string
	listings []domain.Listing
}

func (s *stubConn) Name() string { return s.name }
func (s *stubConn) Type() string { return "stub" }
func (s *stubConn) Fetch(_ context.Context, _ string, _ int) ([]domain.Listing, error) {
	return s.listings, nil
}

type recordingSender struct {
	bodies []string
	fail   bool
}

func (r *recordingSender) Send(_ context.Context, _, body string) (string, error) {
	if r.fail {
		return "", errors.New("provider down")
	}
	r.bodies = append(r.bodies, body)
	return "SM1", nil
}

func newTestScheduler(t *testing.T, sender notify.Sender, listings []domain.Listing) (*Scheduler, *store.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	log := zap.NewNop().Sugar()
	pipe := pipeline.New(db.Pool, dir, 2, log)
	sources := []pipeline.Source{
		{Conn: &stubConn{name: "stub", listings: listings}, Keywords: []string{"kw"}},
	}
	d := notify.NewDispatcher(sender, "whatsapp:+447700900000", 1600, log)

	return New(db.Pool, pipe, sources, d, "08:30", time.Hour, time.Millisecond, 0, log), db
}

func fixtureListings(n int) []domain.Listing {
	out := make([]domain.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Listing{
			URL:       "https://example.com/j/" + string(rune('a'+i)),
			Title:     "Role",
			Source:    "stub",
			FetchedAt: time.Now().UTC(),
		})
	}
	return out
}

func TestDigestTickSendsEvenWhenQuiet(t *testing.T) {
	sender := &recordingSender{}
	sched, _ := newTestScheduler(t, sender, nil)

	var notified []notify.TickKind
	sched.OnNotified = func(kind notify.TickKind, _ int) { notified = append(notified, kind) }

	sched.Tick(context.Background(), notify.TickDigest)

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "no new roles")
	assert.Equal(t, []notify.TickKind{notify.TickDigest}, notified)
}

func TestIntervalTickStaysQuietWithNothingNew(t *testing.T) {
	sender := &recordingSender{}
	sched, db := newTestScheduler(t, sender, fixtureListings(2))

	sched.Tick(context.Background(), notify.TickInterval)
	require.Len(t, sender.bodies, 1, "first cycle finds both roles")

	// Nothing new on the second pass: silence.
	sched.Tick(context.Background(), notify.TickInterval)
	assert.Len(t, sender.bodies, 1)

	last, err := store.LastNotifiedAt(db.Pool, "whatsapp")
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestStateAdvancesDespiteSendFailure(t *testing.T) {
	sender := &recordingSender{fail: true}
	sched, db := newTestScheduler(t, sender, fixtureListings(1))

	notified := 0
	sched.OnNotified = func(notify.TickKind, int) { notified++ }

	sched.Tick(context.Background(), notify.TickInterval)

	last, err := store.LastNotifiedAt(db.Pool, "whatsapp")
	require.NoError(t, err)
	assert.False(t, last.IsZero(), "a failed dispatch must not replay forever")
	assert.Zero(t, notified, "a failed dispatch is not a sent notification")
}

func TestDigestCronSpec(t *testing.T) {
	spec, err := digestCronSpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", spec)

	spec, err = digestCronSpec("23:05")
	require.NoError(t, err)
	assert.Equal(t, "5 23 * * *", spec)

	_, err = digestCronSpec("25:00")
	assert.Error(t, err)
	_, err = digestCronSpec("0830")
	assert.Error(t, err)
}
