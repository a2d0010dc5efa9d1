// Package scheduler owns the clock: it runs indexing cycles and fires
// the notification ticks at their configured times.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobradar-engine/internal/notify"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/store"
)

// channel is the notify_state key for the single outbound channel.
const channel = "whatsapp"

type Scheduler struct {
	db         *sql.DB
	pipe       *pipeline.Pipeline
	sources    []pipeline.Source
	dispatcher *notify.Dispatcher // nil when notifications are disabled
	log        *zap.SugaredLogger

	// OnNotified is called after a message goes out in full.
	OnNotified func(kind notify.TickKind, newEntries int)

	digestTime string // "HH:MM"
	interval   time.Duration
	settle     time.Duration
	retention  time.Duration

	cron *cron.Cron
}

func New(db *sql.DB, pipe *pipeline.Pipeline, sources []pipeline.Source,
	dispatcher *notify.Dispatcher, digestTime string, interval, settle, retention time.Duration,
	log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		db:         db,
		pipe:       pipe,
		sources:    sources,
		dispatcher: dispatcher,
		log:        log,
		digestTime: digestTime,
		interval:   interval,
		settle:     settle,
		retention:  retention,
	}
}

// Start registers the cron entries and kicks off an immediate first
// cycle. Blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	spec, err := digestCronSpec(s.digestTime)
	if err != nil {
		return err
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx, notify.TickDigest) }); err != nil {
		return err
	}
	every := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(every, func() { s.Tick(ctx, notify.TickInterval) }); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Infow("scheduler started", "digest", spec, "interval", s.interval)

	// First cycle fills a cold index without waiting for the clock.
	go s.Tick(ctx, notify.TickInterval)

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Tick runs one full cycle: index, settle, snapshot, decide, dispatch.
// The notified high-water mark is the cycle completion time, recorded
// after any send attempt, failed or not, so a broken provider can't
// make the same roles alert forever.
func (s *Scheduler) Tick(ctx context.Context, kind notify.TickKind) {
	if kind == notify.TickDigest && s.retention > 0 {
		if n, err := store.PurgeStale(s.db, s.retention); err != nil {
			s.log.Errorw("purge failed", "err", err)
		} else if n > 0 {
			s.log.Infow("purged stale entries", "deleted", n)
		}
	}

	rep, err := s.pipe.Run(ctx, s.sources, pipeline.Options{})
	if err != nil {
		s.log.Errorw("indexing cycle failed", "tick", kind, "err", err)
		return
	}
	completed := time.Now().UTC()

	if s.dispatcher == nil {
		return
	}

	// Let slow writes land before snapshotting.
	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return
	}

	last, err := store.LastNotifiedAt(s.db, channel)
	if err != nil {
		s.log.Errorw("load notify state", "err", err)
		return
	}
	fresh, err := store.NewSince(ctx, s.db, last)
	if err != nil {
		s.log.Errorw("snapshot new entries", "err", err)
		return
	}
	stats, err := store.IndexStats(ctx, s.db)
	if err != nil {
		s.log.Errorw("snapshot stats", "err", err)
		return
	}

	msg, send := notify.Decide(kind, notify.Snapshot{Total: stats.Total, New: fresh})
	if !send {
		s.log.Debugw("nothing to send", "tick", kind, "added", rep.Added)
		return
	}

	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.log.Errorw("dispatch failed", "tick", kind, "err", err)
	} else if s.OnNotified != nil {
		s.OnNotified(kind, len(fresh))
	}
	if err := store.SetLastNotifiedAt(s.db, channel, completed); err != nil {
		s.log.Errorw("save notify state", "err", err)
	}
}

// digestCronSpec turns "08:30" into "30 8 * * *".
func digestCronSpec(hhmm string) (string, error) {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok {
		return "", fmt.Errorf("digest time %q is not HH:MM", hhmm)
	}
	var hour, min int
	if _, err := fmt.Sscanf(h+" "+m, "%d %d", &hour, &min); err != nil {
		return "", fmt.Errorf("digest time %q is not HH:MM", hhmm)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return "", fmt.Errorf("digest time %q out of range", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", min, hour), nil
}
