package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinpulse/internal/config"
)

type fakeCache struct {
	links map[string]bool
}

func (f *fakeCache) Exists(link string) bool { return f.links[link] }

func rssItem(title, link string, published time.Time) string {
	pub := ""
	if !published.IsZero() {
		pub = "<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>"
	}
	return fmt.Sprintf("<item><title>%s</title><link>%s</link>%s</item>", title, link, pub)
}

func serveRSS(t *testing.T, items ...string) *httptest.Server {
	t.Helper()
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>test</title>`
	for _, it := range items {
		body += it
	}
	body += `</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCollect_AgeFilterAndDrops(t *testing.T) {
	now := time.Now()
	srv := serveRSS(t,
		rssItem("Bitcoin Breaks $100k Milestone", "https://example.com/fresh", now.Add(-1*time.Hour)),
		rssItem("Old News", "https://example.com/old", now.Add(-30*time.Hour)),
		rssItem("", "https://example.com/no-title", now.Add(-1*time.Hour)),
		"<item><title>No Link</title></item>",
	)

	c := NewCollector(nil, 24*time.Hour)
	entries := c.Collect(context.Background(), config.Feed{Name: "test", URL: srv.URL, Selector: "body"}, false, now)

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %+v", len(entries), entries)
	}
	e := entries[0]
	if e.Title != "Bitcoin Breaks $100k Milestone" {
		t.Errorf("unexpected entry: %s", e.Title)
	}
	if e.Source != "test" || e.Selector != "body" {
		t.Errorf("feed metadata not propagated: %+v", e)
	}
	if e.Item == nil {
		t.Error("expected raw item handle to be retained")
	}
}

func TestCollect_UnparseableDateFallsBackToNow(t *testing.T) {
	now := time.Now()
	srv := serveRSS(t,
		"<item><title>No Date</title><link>https://example.com/nodate</link></item>",
	)

	c := NewCollector(nil, 24*time.Hour)
	entries := c.Collect(context.Background(), config.Feed{Name: "test", URL: srv.URL}, false, now)

	if len(entries) != 1 {
		t.Fatalf("expected the dateless item to survive, got %d entries", len(entries))
	}
	if !entries[0].Published.Equal(now) {
		t.Errorf("expected published fallback to now, got %v", entries[0].Published)
	}
}

func TestCollect_CacheGate(t *testing.T) {
	now := time.Now()
	srv := serveRSS(t,
		rssItem("Seen Before", "https://example.com/seen", now.Add(-1*time.Hour)),
		rssItem("Brand New", "https://example.com/new", now.Add(-2*time.Hour)),
	)

	cache := &fakeCache{links: map[string]bool{"https://example.com/seen": true}}
	c := NewCollector(cache, 24*time.Hour)

	entries := c.Collect(context.Background(), config.Feed{Name: "test", URL: srv.URL}, true, now)
	if len(entries) != 1 || entries[0].Link != "https://example.com/new" {
		t.Fatalf("cache gate failed: %+v", entries)
	}

	// With caching disabled the same entry passes through.
	entries = c.Collect(context.Background(), config.Feed{Name: "test", URL: srv.URL}, false, now)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries with cache disabled, got %d", len(entries))
	}
}

func TestCollect_FeedErrorYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewCollector(nil, 24*time.Hour)
	entries := c.Collect(context.Background(), config.Feed{Name: "broken", URL: srv.URL}, false, time.Now())
	if entries != nil {
		t.Errorf("expected nil entries for a broken feed, got %v", entries)
	}
}

func TestCollectAll_MergesNewestFirst(t *testing.T) {
	now := time.Now()
	srvA := serveRSS(t,
		rssItem("A older", "https://a.example.com/2", now.Add(-3*time.Hour)),
		rssItem("A newest", "https://a.example.com/1", now.Add(-1*time.Hour)),
	)
	srvB := serveRSS(t,
		rssItem("B middle", "https://b.example.com/1", now.Add(-2*time.Hour)),
	)

	c := NewCollector(nil, 24*time.Hour)
	all := c.CollectAll(context.Background(), []config.Feed{
		{Name: "a", URL: srvA.URL},
		{Name: "b", URL: srvB.URL},
	}, false)

	want := []string{"A newest", "B middle", "A older"}
	if len(all) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(all))
	}
	for i, title := range want {
		if all[i].Title != title {
			t.Errorf("position %d: expected %q, got %q", i, title, all[i].Title)
		}
	}
}

func TestCollectAll_BrokenFeedDoesNotAbort(t *testing.T) {
	now := time.Now()
	good := serveRSS(t, rssItem("Works", "https://ok.example.com/1", now.Add(-1*time.Hour)))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(bad.Close)

	c := NewCollector(nil, 24*time.Hour)
	all := c.CollectAll(context.Background(), []config.Feed{
		{Name: "bad", URL: bad.URL},
		{Name: "good", URL: good.URL},
	}, false)

	if len(all) != 1 || all[0].Title != "Works" {
		t.Fatalf("expected the good feed to survive, got %+v", all)
	}
}
