package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/feed"
	"github.com/rvasiliev/feedping/internal/history"
	"github.com/rvasiliev/feedping/internal/notify"
)

type fakeFetcher struct {
	feeds map[string][]feed.Entry
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, _, url string) ([]feed.Entry, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.feeds[url], nil
}

type fakeDispatcher struct {
	sent    []notify.Payload
	failSet map[string]bool // titles that fail to send
}

func (d *fakeDispatcher) Dispatch(_ context.Context, p notify.Payload) error {
	if d.failSet[p.Title] {
		return &notify.DispatchError{Topic: p.Topic, Status: 500}
	}
	d.sent = append(d.sent, p)
	return nil
}

func entries(ids ...string) []feed.Entry {
	out := make([]feed.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, feed.Entry{
			ID:      id,
			Title:   id,
			Link:    "https://example.com/" + id,
			Content: "<p>body of " + id + "</p>",
		})
	}
	return out
}

func newTestSyncer(fetcher *fakeFetcher, ledger history.Ledger, dispatcher *fakeDispatcher, maxPerFeed int) *Syncer {
	pacer := notify.NewPacer(0, 0)
	return New(fetcher, ledger, dispatcher, pacer, maxPerFeed, zerolog.Nop())
}

func oneGroup(urls ...string) []config.Group {
	sources := make([]config.Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, config.Source{Name: u, URL: u, Priority: 5, Tags: []string{"newspaper"}})
	}
	return []config.Group{{Topic: "news", Sources: sources}}
}

func sentTitles(d *fakeDispatcher) []string {
	out := make([]string, 0, len(d.sent))
	for _, p := range d.sent {
		out = append(out, p.Title)
	}
	return out
}

func TestRunDispatchesInOrder(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A", "B", "C")}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)

	rep, err := s.Run(context.Background(), oneGroup("u1"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := sentTitles(dispatcher)
	want := []string{"A", "B", "C"}
	if len(got) != 3 {
		t.Fatalf("sent = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent = %v, want %v", got, want)
		}
	}

	if rep.Dispatched != 3 || rep.New != 3 || rep.Feeds != 1 || rep.Groups != 1 {
		t.Errorf("report = %+v", rep)
	}

	// Each dispatch was recorded immediately.
	for _, id := range want {
		seen, _ := ledger.Contains(context.Background(), FeedID("news", "u1"), id)
		if !seen {
			t.Errorf("entry %s not recorded", id)
		}
	}

	// Payloads carry source metadata.
	if dispatcher.sent[0].Topic != "news" || dispatcher.sent[0].Priority != 5 {
		t.Errorf("payload = %+v", dispatcher.sent[0])
	}
}

func TestRunSecondCycleOnlyNew(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A", "B", "C")}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)
	ctx := context.Background()

	if _, err := s.Run(ctx, oneGroup("u1")); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Same feed again, with one new entry appended.
	fetcher.feeds["u1"] = entries("A", "B", "C", "D")
	dispatcher.sent = nil

	rep, err := s.Run(ctx, oneGroup("u1"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	got := sentTitles(dispatcher)
	if len(got) != 1 || got[0] != "D" {
		t.Fatalf("second cycle sent = %v, want [D]", got)
	}
	if rep.New != 1 || rep.Dispatched != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunIdenticalCycleSendsNothing(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A", "B")}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)
	ctx := context.Background()

	if _, err := s.Run(ctx, oneGroup("u1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	dispatcher.sent = nil

	rep, err := s.Run(ctx, oneGroup("u1"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(dispatcher.sent) != 0 || rep.New != 0 {
		t.Fatalf("idempotence violated: sent = %v, report = %+v", sentTitles(dispatcher), rep)
	}
}

func TestRunDispatchFailureRetriedNextCycle(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A", "B", "C")}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{failSet: map[string]bool{"B": true}}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)
	ctx := context.Background()

	rep, err := s.Run(ctx, oneGroup("u1"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Dispatched != 2 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}

	// The failed entry was not recorded.
	seen, _ := ledger.Contains(ctx, FeedID("news", "u1"), "B")
	if seen {
		t.Fatal("failed dispatch must not be recorded")
	}

	// Next cycle, with the endpoint healthy again, only B goes out.
	dispatcher.failSet = nil
	dispatcher.sent = nil

	if _, err := s.Run(ctx, oneGroup("u1")); err != nil {
		t.Fatalf("second run: %v", err)
	}
	got := sentTitles(dispatcher)
	if len(got) != 1 || got[0] != "B" {
		t.Fatalf("retry sent = %v, want [B]", got)
	}
}

func TestRunBadFeedIsolated(t *testing.T) {
	fetcher := &fakeFetcher{
		feeds: map[string][]feed.Entry{"good": entries("A")},
		errs:  map[string]error{"bad": &feed.FetchError{Feed: "bad", URL: "bad", Err: errors.New("connection refused")}},
	}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)

	rep, err := s.Run(context.Background(), oneGroup("bad", "good"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.FailedFeeds != 1 {
		t.Errorf("failed feeds = %d, want 1", rep.FailedFeeds)
	}
	got := sentTitles(dispatcher)
	if len(got) != 1 || got[0] != "A" {
		t.Fatalf("sent = %v, want [A]", got)
	}
}

func TestRunSkipsUntitledEntry(t *testing.T) {
	es := entries("A", "B")
	es[0].Title = "" // extraction failure: mandatory title missing
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": es}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 0)

	rep, err := s.Run(context.Background(), oneGroup("u1"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Skipped != 1 || rep.Dispatched != 1 {
		t.Errorf("report = %+v", rep)
	}
	got := sentTitles(dispatcher)
	if len(got) != 1 || got[0] != "B" {
		t.Fatalf("sent = %v, want [B]", got)
	}
}

func TestRunPerFeedCap(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A", "B", "C", "D", "E")}}
	ledger := history.NewMemory()
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, ledger, dispatcher, 3)
	ctx := context.Background()

	if _, err := s.Run(ctx, oneGroup("u1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	got := sentTitles(dispatcher)
	if len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Fatalf("first cycle sent = %v, want oldest three", got)
	}

	// Held entries drain on the next cycle.
	dispatcher.sent = nil
	if _, err := s.Run(ctx, oneGroup("u1")); err != nil {
		t.Fatalf("second run: %v", err)
	}
	got = sentTitles(dispatcher)
	if len(got) != 2 || got[0] != "D" || got[1] != "E" {
		t.Fatalf("second cycle sent = %v, want [D E]", got)
	}
}

type failingLedger struct{}

func (failingLedger) Contains(context.Context, string, string) (bool, error) {
	return false, &history.StoreError{Op: "contains", Err: errors.New("database is locked")}
}

func (failingLedger) Record(context.Context, string, string, time.Time) error {
	return &history.StoreError{Op: "record", Err: errors.New("database is locked")}
}

func TestRunStoreErrorAbortsCycle(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string][]feed.Entry{"u1": entries("A")}}
	dispatcher := &fakeDispatcher{}
	s := newTestSyncer(fetcher, failingLedger{}, dispatcher, 0)

	_, err := s.Run(context.Background(), oneGroup("u1"))
	var se *history.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("dispatched %v with broken ledger", sentTitles(dispatcher))
	}
}

func TestFeedID(t *testing.T) {
	if FeedID("news", "u") == FeedID("tech", "u") {
		t.Error("feed identity must include the group topic")
	}
	if FeedID("news", "u1") == FeedID("news", "u2") {
		t.Error("feed identity must include the url")
	}
}
