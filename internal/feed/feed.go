// Package feed fetches RSS/Atom feeds and normalizes their items into
// uniform entries for the sync pipeline.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry is a single normalized feed item. Entries are produced fresh on
// every fetch and never persisted.
type Entry struct {
	ID           string    // stable identity: GUID, or a hash of link+title
	Title        string
	Link         string
	Published    time.Time // zero when the feed gives no timestamp
	Content      string    // raw HTML or plain text
	EnclosureURL string    // image from media/enclosure metadata, if any
}

// FetchError reports a failed fetch or parse of one feed source. It is
// isolated per source: the caller logs it and moves on to the next feed.
type FetchError struct {
	Feed string // source name from the group file
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Feed != "" {
		return fmt.Sprintf("fetch %s (%s): %v", e.Feed, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EntryID derives the stable identity for an item: the GUID when present,
// otherwise a hash of link and title.
func EntryID(guid, link, title string) string {
	if guid != "" {
		return guid
	}
	sum := sha256.Sum256([]byte(link + "\x00" + title))
	return hex.EncodeToString(sum[:])
}
