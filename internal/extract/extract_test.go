package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rvasiliev/feedping/internal/config"
	"github.com/rvasiliev/feedping/internal/feed"
)

func TestDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"tags stripped", "<p>hello <b>bold</b> world</p>", "hello bold world"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"whitespace collapsed", "a\n\n  b\t\tc", "a b c"},
		{"empty", "", ""},
		{"only markup", "<div><img src='x.png'/></div>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Description(tt.input); got != tt.want {
				t.Errorf("Description(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDescriptionTruncation(t *testing.T) {
	long := strings.Repeat("word ", 200) // 1000 chars
	got := Description(long)

	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got tail %q", got[len(got)-10:])
	}
	if len([]rune(got)) > MaxDescriptionLen+3 {
		t.Errorf("length = %d runes", len([]rune(got)))
	}
	// Word boundary: no split inside "word".
	trimmed := strings.TrimSuffix(got, "...")
	if !strings.HasSuffix(trimmed, "word") {
		t.Errorf("truncated mid-word: %q", trimmed[len(trimmed)-10:])
	}
}

func TestImageURL(t *testing.T) {
	t.Run("enclosure wins", func(t *testing.T) {
		e := feed.Entry{
			Content:      `<img src="https://example.com/inline.png">`,
			EnclosureURL: "https://example.com/enclosure.jpg",
		}
		if got := ImageURL(e); got != "https://example.com/enclosure.jpg" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("first img tag", func(t *testing.T) {
		e := feed.Entry{Content: `text <IMG SRC='https://example.com/a.png'> <img src="https://example.com/b.png">`}
		if got := ImageURL(e); got != "https://example.com/a.png" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unquoted src", func(t *testing.T) {
		e := feed.Entry{Content: `<img src=https://example.com/u.png alt=x>`}
		if got := ImageURL(e); got != "https://example.com/u.png" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("no image", func(t *testing.T) {
		e := feed.Entry{Content: "<p>plain paragraph</p>"}
		if got := ImageURL(e); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestPayload(t *testing.T) {
	src := config.Source{
		Name:     "Example",
		URL:      "https://example.com/rss",
		Priority: 4,
		Icon:     "https://example.com/icon.png",
		Tags:     []string{"newspaper", "tech"},
	}
	published := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	entry := feed.Entry{
		ID:        "e1",
		Title:     "Big News",
		Link:      "https://example.com/post",
		Published: published,
		Content:   `<p>Something <b>happened</b></p><img src="https://example.com/pic.jpg">`,
	}

	p, err := Payload("news", src, entry)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	if p.Topic != "news" || p.Title != "Big News" {
		t.Errorf("topic/title = %q/%q", p.Topic, p.Title)
	}
	if p.Message != "Something happened" {
		t.Errorf("message = %q", p.Message)
	}
	if p.Priority != 4 {
		t.Errorf("priority = %d", p.Priority)
	}
	if p.Attach != "https://example.com/pic.jpg" {
		t.Errorf("attach = %q", p.Attach)
	}
	if p.Click != "https://example.com/post" {
		t.Errorf("click = %q", p.Click)
	}
	if p.Icon != src.Icon || len(p.Tags) != 2 {
		t.Errorf("icon/tags = %q/%v", p.Icon, p.Tags)
	}
	if !p.PublishedAt.Equal(published) {
		t.Errorf("published = %s", p.PublishedAt)
	}
}

func TestPayloadNoTitle(t *testing.T) {
	entry := feed.Entry{ID: "e2", Title: "   ", Content: "body"}
	_, err := Payload("news", config.Source{URL: "u", Priority: 3}, entry)

	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if ee.EntryID != "e2" {
		t.Errorf("entry id = %q", ee.EntryID)
	}
}

func TestPayloadEmptyFieldsDegrade(t *testing.T) {
	entry := feed.Entry{ID: "e3", Title: "Only a title"}
	p, err := Payload("news", config.Source{URL: "u", Priority: 1}, entry)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Message != "" || p.Attach != "" {
		t.Errorf("message/attach = %q/%q, want empty", p.Message, p.Attach)
	}
}
