package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// uaTransport injects the configured User-Agent header into every request.
type uaTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// Fetcher retrieves feeds over HTTP and parses them with gofeed.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher that identifies as userAgent and bounds
// every request by timeout.
func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &uaTransport{agent: userAgent, base: http.DefaultTransport},
		},
	}
}

// Fetch retrieves and parses the feed named name at feedURL. The returned
// entries are ordered oldest-first so dispatch follows chronological
// order; feeds list items newest-first, so the source order is reversed.
// Any HTTP, timeout, or parse failure is wrapped in a FetchError carrying
// the source identity.
func (f *Fetcher) Fetch(ctx context.Context, name, feedURL string) ([]Entry, error) {
	fp := gofeed.NewParser()
	fp.Client = f.client

	parsed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &FetchError{Feed: name, URL: feedURL, Err: err}
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for i := len(parsed.Items) - 1; i >= 0; i-- {
		entries = append(entries, normalizeItem(parsed.Items[i]))
	}
	return entries, nil
}

func normalizeItem(item *gofeed.Item) Entry {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	return Entry{
		ID:           EntryID(item.GUID, item.Link, item.Title),
		Title:        item.Title,
		Link:         item.Link,
		Published:    itemPublishedTime(item),
		Content:      content,
		EnclosureURL: itemEnclosureURL(item),
	}
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// itemEnclosureURL picks an image URL from feed metadata: media:content
// first, then the first enclosure, then the item image.
func itemEnclosureURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return ""
}
