// Package extract derives notification payload fields from raw feed
// entry content.
package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/feed"
	"github.com/rvasiliev/feedping/internal/notify"
)

// MaxDescriptionLen bounds the plain-text description, in runes.
const MaxDescriptionLen = 500

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	imgSrcRe     = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']?([^"'\s>]+)`)
)

// ExtractionError reports an entry that cannot produce a payload. The only
// mandatory field is the title; everything else degrades to empty. The
// entry is skipped, not the batch.
type ExtractionError struct {
	EntryID string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: entry has no title", e.EntryID)
}

// Payload builds the outbound notification for one new entry of a source.
func Payload(topic string, src config.Source, entry feed.Entry) (notify.Payload, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return notify.Payload{}, &ExtractionError{EntryID: entry.ID}
	}

	return notify.Payload{
		Topic:       topic,
		Title:       entry.Title,
		Message:     Description(entry.Content),
		Priority:    int(src.Priority),
		Tags:        src.Tags,
		Icon:        src.Icon,
		Attach:      ImageURL(entry),
		Click:       entry.Link,
		PublishedAt: entry.Published,
	}, nil
}

// Description strips markup from raw content, collapses whitespace, and
// truncates to MaxDescriptionLen runes on a word boundary.
func Description(raw string) string {
	text := htmlTagRe.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return truncateWords(strings.TrimSpace(text), MaxDescriptionLen)
}

// ImageURL picks the entry's image: feed enclosure metadata wins, then the
// first <img src=...> in the raw content. Empty when neither exists.
func ImageURL(entry feed.Entry) string {
	if entry.EnclosureURL != "" {
		return entry.EnclosureURL
	}
	if m := imgSrcRe.FindStringSubmatch(entry.Content); m != nil {
		return m[1]
	}
	return ""
}

// truncateWords cuts s to at most maxRunes runes, backing up to the last
// space so words stay whole, and marks the cut with an ellipsis.
func truncateWords(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}

	cut := string(runes[:maxRunes])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}
