// Package dedup filters fetched entries down to the ones never notified
// before, against the durable history ledger.
package dedup

import (
	"context"

	"github.com/rvasiliev/feedping/internal/feed"
	"github.com/rvasiliev/feedping/internal/history"
)

// Engine answers "which of these entries are new?" for one feed at a time.
// It only reads the ledger; recording happens after a dispatch attempt, so
// an entry whose notification failed stays eligible for the next cycle.
type Engine struct {
	ledger history.Ledger
}

func New(ledger history.Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Filter returns the entries not present in the ledger under feedID,
// preserving input order. Already-seen entries are dropped silently, so
// fetching the same feed twice yields nothing new the second time.
func (e *Engine) Filter(ctx context.Context, feedID string, entries []feed.Entry) ([]feed.Entry, error) {
	var unseen []feed.Entry
	for _, entry := range entries {
		seen, err := e.ledger.Contains(ctx, feedID, entry.ID)
		if err != nil {
			return nil, err
		}
		if !seen {
			unseen = append(unseen, entry)
		}
	}
	return unseen, nil
}
