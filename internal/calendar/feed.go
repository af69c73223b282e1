package calendar

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
	"sort"
	"time"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// Subscription is a read-only ICS feed shown in the daily agenda.
type Subscription struct {
	ID  string
	URL string
}

// feedMeta holds the HTTP validators of the cached copy of one feed.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Feeds lists events from ICS subscriptions. Each feed is fetched with
// conditional requests and kept on disk, so an unreachable feed still
// contributes its last known events.
type Feeds struct {
	client   *http.Client
	cacheDir string
	subs     []Subscription
}

// NewFeeds constructs a new Feeds caching under cacheDir.
func NewFeeds(cacheDir string, subs []Subscription) *Feeds {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Feeds{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
		subs:     subs,
	}
}

// ListEvents returns events from every feed overlapping [from, to). Feeds
// that fail without a cached copy are logged and skipped; an error is
// returned only when every feed failed.
func (f *Feeds) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	out := make([]model.Event, 0)
	var errs []error

	for _, sub := range f.subs {
		body, err := f.fetch(ctx, sub)
		if err != nil {
			appLog.Error("ics feed unavailable", err, "id", sub.ID, "url", redactURL(sub.URL))
			errs = append(errs, err)
			continue
		}
		events, err := parseICS(sub.ID, body, from.Location())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ev := range events {
			if ev.Start.Before(to) && ev.End.After(from) {
				out = append(out, ev)
			}
		}
	}

	if len(errs) > 0 && len(errs) == len(f.subs) {
		return nil, errors.Join(errs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// fetch returns the feed body, from the network or, on 304 or failure,
// from the disk cache.
func (f *Feeds) fetch(ctx context.Context, sub Subscription) ([]byte, error) {
	if sub.URL == "" {
		return nil, errors.New("feed URL is empty")
	}
	dir := f.cachePath(sub.URL)
	meta, _ := loadFeedMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.URL, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("ics feed fetch failed, using cached copy", "id", sub.ID, "err", err)
			return cached, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		meta := feedMeta{
			URL:          sub.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveFeed(dir, meta, body); err != nil {
			appLog.Error("ics feed cache save failed", err, "id", sub.ID)
		}
		appLog.Debug("ics feed fetched", "id", sub.ID, "bytes", len(body))
		return body, nil
	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, errors.New("304 Not Modified but no cached copy")
		}
		return cached, nil
	default:
		if len(cached) > 0 {
			appLog.Warn("ics feed returned non-OK, using cached copy", "id", sub.ID, "status", resp.StatusCode)
			return cached, nil
		}
		return nil, fmt.Errorf("fetch feed: %s", resp.Status)
	}
}

func (f *Feeds) cachePath(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadFeedMeta(dir string) (feedMeta, error) {
	var meta feedMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// saveFeed writes the body before the validators so the metadata never
// describes a body that is not on disk.
func saveFeed(dir string, meta feedMeta, body []byte) error {
	if err := writeFileAtomic(filepath.Join(dir, "body.ics"), body); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "meta.json"), data)
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

// Merge lists from several sources as one, ordered by start. A failing
// source is logged and skipped unless all of them fail.
type Merge []Lister

func (m Merge) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	out := make([]model.Event, 0)
	var errs []error
	for _, l := range m {
		events, err := l.ListEvents(ctx, from, to)
		if err != nil {
			appLog.Error("event source failed", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, events...)
	}
	if len(m) > 0 && len(errs) == len(m) {
		return nil, errors.Join(errs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
