package holiday

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "venueops/internal/log"
	"venueops/internal/model"
)

const maxFeedBytes = 4 << 20

// Feed is a remote iCalendar feed of holidays. Classification applies to
// events whose CATEGORIES name no known class.
type Feed struct {
	ID             string
	URL            string
	Classification model.HolidayClass
}

// FeedResult is the parsed outcome of one feed.
type FeedResult struct {
	Feed      Feed
	Entries   []model.Holiday
	FromCache bool
}

// Fetcher loads holiday feeds with conditional requests and keeps the last
// body that parsed, so an unreachable or broken upstream serves the
// previous table instead of none.
type Fetcher struct {
	client *http.Client
	cache  feedCache
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/holiday-cache"
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  feedCache{dir: cacheDir},
	}
}

// LoadAll loads every feed. Failed feeds are logged and joined into the
// returned error; the others are still returned.
func (f *Fetcher) LoadAll(ctx context.Context, feeds []Feed) ([]FeedResult, error) {
	results := make([]FeedResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		res, err := f.Load(ctx, feed)
		if err != nil {
			appLog.Error("holiday feed failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			errs = append(errs, fmt.Errorf("holiday feed %s: %w", feed.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Load fetches and parses a single feed. The cache is only rewritten with a
// body that parsed.
func (f *Fetcher) Load(ctx context.Context, feed Feed) (FeedResult, error) {
	if feed.URL == "" {
		return FeedResult{}, errors.New("feed URL is empty")
	}
	meta, cached := f.cache.read(feed.URL)

	body, status, err := f.get(ctx, feed.URL, meta)
	switch {
	case err != nil:
		appLog.Warn("holiday feed unreachable", "id", feed.ID, "url", redactURL(feed.URL), "err", err)
		return f.fromCache(feed, cached, err)
	case status == http.StatusNotModified:
		return f.fromCache(feed, cached, errors.New("304 Not Modified without a cached body"))
	case status != http.StatusOK:
		appLog.Warn("holiday feed non-OK", "id", feed.ID, "status", status)
		return f.fromCache(feed, cached, fmt.Errorf("unexpected status %d", status))
	}

	entries, err := ParseICS(feed.ID, body, feed.Classification)
	if err != nil {
		appLog.Warn("holiday feed body rejected, keeping cached copy", "id", feed.ID, "err", err)
		return f.fromCache(feed, cached, err)
	}
	if err := f.cache.write(feed.URL, meta, body); err != nil {
		appLog.Error("holiday cache save failed", err, "id", feed.ID)
	}
	return FeedResult{Feed: feed, Entries: entries}, nil
}

// get issues a conditional GET. meta is updated with the response
// validators on 200.
func (f *Fetcher) get(ctx context.Context, rawURL string, meta *cacheMeta) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	meta.ETag = resp.Header.Get("ETag")
	meta.LastModified = resp.Header.Get("Last-Modified")
	return body, resp.StatusCode, nil
}

func (f *Fetcher) fromCache(feed Feed, cached []byte, cause error) (FeedResult, error) {
	if len(cached) == 0 {
		return FeedResult{}, cause
	}
	entries, err := ParseICS(feed.ID, cached, feed.Classification)
	if err != nil {
		return FeedResult{}, errors.Join(cause, err)
	}
	return FeedResult{Feed: feed, Entries: entries, FromCache: true}, nil
}

// feedCache stores one body and its HTTP validators per feed URL.
type feedCache struct {
	dir string
}

type cacheMeta struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c feedCache) base(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8]))
}

// read returns the cached validators and body. Missing or corrupt entries
// read as empty, which turns the next request unconditional.
func (c feedCache) read(rawURL string) (*cacheMeta, []byte) {
	base := c.base(rawURL)
	body, err := os.ReadFile(base + ".ics")
	if err != nil {
		return &cacheMeta{}, nil
	}
	meta := &cacheMeta{}
	if data, err := os.ReadFile(base + ".json"); err == nil {
		if json.Unmarshal(data, meta) != nil {
			meta = &cacheMeta{}
		}
	}
	return meta, body
}

func (c feedCache) write(rawURL string, meta *cacheMeta, body []byte) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	base := c.base(rawURL)
	// Body first so the validators never describe a body that is missing.
	if err := os.WriteFile(base+".ics", body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(base+".json", data, 0o600)
}

// redactURL keeps scheme and host only, since feed URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
