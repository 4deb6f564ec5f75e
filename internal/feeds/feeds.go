// Package feeds collects candidate entries from the configured
// syndication feeds and merges them into one time-ordered stream.
package feeds

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"coinpulse/internal/config"
	"coinpulse/internal/metrics"
)

// Entry is one parsed, not-yet-enriched feed item eligible for
// relevance evaluation. Held in memory for the duration of one run.
type Entry struct {
	Source       string
	Title        string
	Link         string
	Published    time.Time
	PublishedRaw string
	Selector     string
	Item         *gofeed.Item
}

// LinkChecker is the cache gate: entries whose link already exists are
// not re-emitted as candidates.
type LinkChecker interface {
	Exists(link string) bool
}

type Collector struct {
	parser *gofeed.Parser
	cache  LinkChecker
	maxAge time.Duration
}

// NewCollector builds a collector. cache may be nil when caching is
// disabled entirely.
func NewCollector(cache LinkChecker, maxAge time.Duration) *Collector {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Collector{
		parser: gofeed.NewParser(),
		cache:  cache,
		maxAge: maxAge,
	}
}

// Collect fetches and normalizes one feed. Items missing link or title
// are dropped; an unparseable publish date falls back to now so the item
// stays inside the window. Any feed-level failure is logged and yields
// an empty result, collection of other feeds continues.
func (c *Collector) Collect(ctx context.Context, feed config.Feed, cacheEnabled bool, now time.Time) []Entry {
	parsed, err := c.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		slog.Error("feed parse failed", "feed", feed.Name, "url", feed.URL, "error", err)
		metrics.Global.IncrementFeedErrors()
		return nil
	}

	var entries []Entry
	for _, item := range parsed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		if now.Sub(published) > c.maxAge {
			continue
		}

		if cacheEnabled && c.cache != nil && c.cache.Exists(item.Link) {
			slog.Debug("skipping cached entry", "feed", feed.Name, "link", item.Link)
			metrics.Global.IncrementCacheHits()
			continue
		}

		entries = append(entries, Entry{
			Source:       feed.Name,
			Title:        item.Title,
			Link:         item.Link,
			Published:    published,
			PublishedRaw: item.Published,
			Selector:     feed.Selector,
			Item:         item,
		})
	}

	return entries
}

// CollectAll runs the collector over every configured feed and returns
// one globally time-ordered (newest first) candidate stream. Entries
// with equal timestamps keep feed-enumeration order.
func (c *Collector) CollectAll(ctx context.Context, feeds []config.Feed, cacheEnabled bool) []Entry {
	now := time.Now()
	var all []Entry

	for _, feed := range feeds {
		entries := c.Collect(ctx, feed, cacheEnabled, now)
		slog.Info("feed collected", "feed", feed.Name, "candidates", len(entries))
		metrics.Global.AddFeedCollected(len(entries))
		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})
	return all
}
