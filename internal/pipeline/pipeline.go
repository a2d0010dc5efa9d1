// Package pipeline drives one indexing cycle: fan out over the
// configured source/keyword pairs, collect listings, and merge them
// into the index through a single writer.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobradar-engine/internal/connector"
	"jobradar-engine/internal/domain"
	"jobradar-engine/internal/store"
)

// ErrBusy means another indexing run holds the lock, possibly in a
// different process.
var ErrBusy = errors.New("another indexing run is in progress")

type Source struct {
	Conn     connector.Connector
	Keywords []string
	MaxPages int
}

type PairResult struct {
	Source  string `json:"source"`
	Keyword string `json:"keyword"`
	Found   int    `json:"found"`
	Added   int    `json:"added"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	Pairs      []PairResult `json:"pairs"`
	Found      int          `json:"found"`
	Added      int          `json:"added"`
	Failed     int          `json:"failed"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

type Options struct {
	// Replace drops existing entries before indexing: the whole table,
	// or just Only's entries when set. Scheduled cycles never set this;
	// it belongs to the explicit reindex command.
	Replace bool
	// Only restricts the run to a single named source.
	Only string
}

type Pipeline struct {
	db      *sql.DB
	log     *zap.SugaredLogger
	workers int
	lock    *flock.Flock

	// OnNew is called once per listing not previously in the index.
	OnNew func(domain.Listing)
}

func New(db *sql.DB, dataDir string, workers int, log *zap.SugaredLogger) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		db:      db,
		log:     log,
		workers: workers,
		lock:    flock.New(filepath.Join(dataDir, "reindex.lock")),
	}
}

type pairOutcome struct {
	source   string
	keyword  string
	listings []domain.Listing
	err      error
}

// Run executes one cycle over the given sources. Connector failures are
// isolated per pair and reported; store failures abort the run.
func (p *Pipeline) Run(ctx context.Context, sources []Source, opts Options) (Report, error) {
	locked, err := p.lock.TryLock()
	if err != nil {
		return Report{}, err
	}
	if !locked {
		return Report{}, ErrBusy
	}
	defer p.lock.Unlock()

	if opts.Only != "" {
		sources = filterSources(sources, opts.Only)
	}

	rep := Report{StartedAt: time.Now().UTC()}

	if opts.Replace {
		if err := p.dropExisting(sources, opts); err != nil {
			return rep, err
		}
	}

	pairCount := 0
	for _, s := range sources {
		pairCount += len(s.Keywords)
	}
	results := make(chan pairOutcome, pairCount)

	var g errgroup.Group
	g.SetLimit(p.workers)

	for _, s := range sources {
		s := s
		// Keywords of one source run in sequence so that a blocked
		// verdict stops the remaining keywords for this cycle instead
		// of hammering a defense that already said no.
		g.Go(func() error {
			for _, kw := range s.Keywords {
				listings, err := s.Conn.Fetch(ctx, kw, s.MaxPages)
				results <- pairOutcome{source: s.Conn.Name(), keyword: kw, listings: listings, err: err}
				if connector.IsBlocked(err) {
					p.log.Warnw("source blocked, skipping remaining keywords",
						"source", s.Conn.Name(), "keyword", kw)
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	// Serial merge: one writer, cross-pair dedup by canonical URL.
	seen := map[string]bool{}
	for res := range results {
		pr := PairResult{Source: res.source, Keyword: res.keyword, Found: len(res.listings)}
		if res.err != nil {
			pr.Error = res.err.Error()
			rep.Failed++
			p.log.Warnw("pair failed", "source", res.source, "keyword", res.keyword, "err", res.err)
		}

		for _, l := range res.listings {
			if l.URL == "" || seen[l.URL] {
				continue
			}
			seen[l.URL] = true

			added, err := store.UpsertListing(p.db, l)
			if err != nil {
				return rep, err
			}
			if added {
				pr.Added++
				if p.OnNew != nil {
					p.OnNew(l)
				}
			}
		}

		rep.Pairs = append(rep.Pairs, pr)
		rep.Found += pr.Found
		rep.Added += pr.Added
	}

	rep.FinishedAt = time.Now().UTC()
	p.log.Infow("cycle complete", "found", rep.Found, "added", rep.Added,
		"failed", rep.Failed, "took", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	return rep, nil
}

func (p *Pipeline) dropExisting(sources []Source, opts Options) error {
	if opts.Only == "" {
		n, err := store.DeleteAll(p.db)
		if err != nil {
			return err
		}
		p.log.Infow("dropped index for full reindex", "deleted", n)
		return nil
	}
	for _, s := range sources {
		n, err := store.DeleteSource(p.db, s.Conn.Name())
		if err != nil {
			return err
		}
		p.log.Infow("dropped source for reindex", "source", s.Conn.Name(), "deleted", n)
	}
	return nil
}

func filterSources(sources []Source, name string) []Source {
	var out []Source
	for _, s := range sources {
		if s.Conn.Name() == name {
			out = append(out, s)
		}
	}
	return out
}
