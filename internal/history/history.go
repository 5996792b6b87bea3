// Package history keeps the durable ledger of already-notified feed
// entries. One row exists per (feed, entry) pair ever dispatched; rows are
// never mutated and, by default, never deleted.
package history

import (
	"context"
	"fmt"
	"time"
)

// Ledger is the dedup engine's view of notification history. The sqlite
// Store is the durable implementation; Memory backs tests.
type Ledger interface {
	Contains(ctx context.Context, feedID, entryID string) (bool, error)
	Record(ctx context.Context, feedID, entryID string, notifiedAt time.Time) error
}

// StoreError reports an unreachable or corrupt history store. It is fatal
// for the current sync cycle: deduplication cannot be trusted without the
// ledger, so the cycle aborts rather than risk duplicate floods.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
