// Package notify dispatches notification payloads to an ntfy server with
// priority-aware pacing between consecutive sends.
package notify

import (
	"fmt"
	"time"
)

// Payload is one outbound notification, derived from a feed source and a
// new entry. It is never persisted.
type Payload struct {
	Topic       string
	Title       string
	Message     string
	Priority    int // ntfy priority, 1 (min) to 5 (max)
	Tags        []string
	Icon        string
	Attach      string
	Click       string
	PublishedAt time.Time
}

// DispatchError reports a failed notification send. The caller must not
// record the entry as notified, so it is re-delivered on a later cycle.
type DispatchError struct {
	Topic  string
	Status int // HTTP status, 0 on transport failure
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch to %s: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("dispatch to %s: status %d", e.Topic, e.Status)
}

func (e *DispatchError) Unwrap() error { return e.Err }
