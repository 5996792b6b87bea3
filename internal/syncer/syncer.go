// Package syncer runs one full pass over the configured feed groups:
// fetch, dedup, extract, dispatch, record.
package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/dedup"
	"github.com/rvasiliev/feedping/internal/extract"
	"github.com/rvasiliev/feedping/internal/feed"
	"github.com/rvasiliev/feedping/internal/history"
	"github.com/rvasiliev/feedping/internal/notify"
)

// Fetcher retrieves one named feed's entries, oldest-first.
type Fetcher interface {
	Fetch(ctx context.Context, name, feedURL string) ([]feed.Entry, error)
}

// Dispatcher submits one payload to the notification endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, p notify.Payload) error
}

// Report aggregates the outcome of one sync cycle.
type Report struct {
	Groups      int // feed groups visited
	Feeds       int // feed sources visited
	FailedFeeds int // sources that failed to fetch or parse
	New         int // entries that passed dedup
	Dispatched  int // notifications delivered and recorded
	Failed      int // dispatch attempts that failed (retried next cycle)
	Skipped     int // entries skipped by the extractor (no title)
}

// Syncer wires the pipeline together. Feeds are processed strictly in
// order, one at a time, so the pacer sees a single serialized stream of
// dispatches.
type Syncer struct {
	fetcher    Fetcher
	engine     *dedup.Engine
	ledger     history.Ledger
	dispatcher Dispatcher
	pacer      *notify.Pacer
	maxPerFeed int
	log        zerolog.Logger

	now func() time.Time // swappable in tests
}

func New(fetcher Fetcher, ledger history.Ledger, dispatcher Dispatcher, pacer *notify.Pacer, maxPerFeed int, log zerolog.Logger) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		engine:     dedup.New(ledger),
		ledger:     ledger,
		dispatcher: dispatcher,
		pacer:      pacer,
		maxPerFeed: maxPerFeed,
		log:        log,
		now:        time.Now,
	}
}

// FeedID is the persistent identity of a feed source: group topic plus URL.
func FeedID(topic, url string) string {
	return topic + "|" + url
}

// Run executes one sync cycle over groups. A failed feed is logged and
// skipped; a failed dispatch leaves the entry unrecorded for the next
// cycle; a history store failure aborts the cycle, since dedup results
// cannot be trusted without the ledger.
func (s *Syncer) Run(ctx context.Context, groups []config.Group) (Report, error) {
	var rep Report
	s.pacer.Reset()

	for _, group := range groups {
		rep.Groups++
		for _, src := range group.Sources {
			rep.Feeds++
			if err := s.syncSource(ctx, group.Topic, src, &rep); err != nil {
				return rep, err
			}
		}
	}

	s.log.Info().
		Int("groups", rep.Groups).
		Int("feeds", rep.Feeds).
		Int("new", rep.New).
		Int("dispatched", rep.Dispatched).
		Int("failed", rep.Failed).
		Msg("sync cycle complete")

	return rep, nil
}

func (s *Syncer) syncSource(ctx context.Context, topic string, src config.Source, rep *Report) error {
	log := s.log.With().Str("topic", topic).Str("feed", src.Name).Logger()

	entries, err := s.fetcher.Fetch(ctx, src.Name, src.URL)
	if err != nil {
		// One bad feed must not block the others.
		rep.FailedFeeds++
		log.Error().Err(err).Str("url", src.URL).Msg("feed fetch failed")
		return nil
	}

	feedID := FeedID(topic, src.URL)
	unseen, err := s.engine.Filter(ctx, feedID, entries)
	if err != nil {
		return err
	}
	rep.New += len(unseen)

	if s.maxPerFeed > 0 && len(unseen) > s.maxPerFeed {
		// Oldest entries go first; the rest stay unseen for later cycles.
		log.Debug().Int("held", len(unseen)-s.maxPerFeed).Msg("per-feed cap reached")
		unseen = unseen[:s.maxPerFeed]
	}

	for _, entry := range unseen {
		payload, err := extract.Payload(topic, src, entry)
		if err != nil {
			rep.Skipped++
			log.Warn().Err(err).Msg("entry skipped")
			continue
		}

		if err := s.pacer.Wait(ctx, payload.Priority); err != nil {
			return err
		}

		if err := s.dispatcher.Dispatch(ctx, payload); err != nil {
			// Not recorded: the entry is re-delivered next cycle.
			rep.Failed++
			log.Error().Err(err).Str("entry", entry.ID).Msg("dispatch failed")
			continue
		}

		if err := s.ledger.Record(ctx, feedID, entry.ID, s.now()); err != nil {
			return err
		}
		rep.Dispatched++
		log.Info().
			Str("title", payload.Title).
			Int("priority", payload.Priority).
			Msg("notification sent")
	}

	return nil
}
