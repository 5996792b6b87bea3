package notify

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const publishDateFormat = "2006-01-02 15:04:05"

// Client sends payloads to an ntfy server. A global rate limiter caps the
// outbound request rate regardless of per-notification pacing.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates an ntfy client. token may be empty; maxRPS <= 0
// disables the request-rate ceiling.
func NewClient(baseURL, token, userAgent string, timeout time.Duration, maxRPS int) *Client {
	var limiter *rate.Limiter
	if maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRPS), maxRPS)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		limiter:   limiter,
	}
}

// Dispatch posts one payload to <base-url>/<topic>. Any 2xx response is
// success; all other statuses and transport failures return a
// DispatchError.
func (c *Client) Dispatch(ctx context.Context, p Payload) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &DispatchError{Topic: p.Topic, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+p.Topic, strings.NewReader(p.Message))
	if err != nil {
		return &DispatchError{Topic: p.Topic, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Title", headerValue(p.Title))
	req.Header.Set("Priority", strconv.Itoa(p.Priority))
	req.Header.Set("Markdown", "yes")
	if len(p.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(p.Tags, ","))
	}
	if p.Icon != "" {
		req.Header.Set("Icon", p.Icon)
	}
	if p.Attach != "" {
		req.Header.Set("Attach", p.Attach)
	}
	if p.Click != "" {
		req.Header.Set("Click", p.Click)
	}
	if !p.PublishedAt.IsZero() {
		req.Header.Set("X-Publish-Date", p.PublishedAt.Local().Format(publishDateFormat))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &DispatchError{Topic: p.Topic, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DispatchError{Topic: p.Topic, Status: resp.StatusCode}
	}
	return nil
}

// headerValue flattens a title for use in an HTTP header.
func headerValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
