// Package app wires the pipeline components and exposes the two run
// modes: the periodic digest and the on-demand single-asset query.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coinpulse/internal/ai"
	"coinpulse/internal/config"
	"coinpulse/internal/feeds"
	"coinpulse/internal/metrics"
	"coinpulse/internal/news"
	"coinpulse/internal/ratelimit"
	"coinpulse/internal/scraper"
	"coinpulse/internal/store"
	"coinpulse/internal/symbols"
)

type App struct {
	cfg       *config.Config
	store     *store.Store
	collector *feeds.Collector
	processor *news.Processor
	gemini    *ai.GeminiClient // kept for Close
}

// New builds the application. A cache-root failure is the only fatal
// construction error; everything downstream is fail-open per item.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.New(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, store: st}

	var analyzer ai.Analyzer
	switch cfg.AI.Provider {
	case "gemini":
		client, err := ai.NewGeminiClient(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel, cfg.AI.ContentBudget)
		if err != nil {
			return nil, err
		}
		a.gemini = client
		analyzer = client
	case "openai":
		analyzer = ai.NewOpenAIClient(cfg.AI.OpenAIEndpoint, cfg.AI.OpenAIModel, cfg.AI.OpenAIAPIKey, cfg.AI.ContentBudget)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}

	tracked := make([]symbols.TrackedSymbol, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		tracked = append(tracked, symbols.TrackedSymbol{Ticker: s.Ticker, Name: s.Name})
	}

	budget := ratelimit.NewBudget(
		map[string]int{analyzer.Name(): cfg.AI.MaxRequests},
		cfg.AI.MaxRequests,
		24*time.Hour,
	)

	a.collector = feeds.NewCollector(st, cfg.Pipeline.MaxItemAge)
	a.processor = &news.Processor{
		Fetcher:  scraper.New(cfg.RequestTimeout, cfg.RetryAttempts, cfg.RetryDelay),
		Analyzer: analyzer,
		Store:    st,
		Tracked:  tracked,
		Budget:   budget,
	}

	return a, nil
}

func (a *App) Close() {
	if a.gemini != nil {
		a.gemini.Close()
	}
}

// RunDigest is the periodic run: collect everything, accept up to the
// digest target, then sweep expired cache records.
func (a *App) RunDigest(ctx context.Context) {
	a.run(ctx, a.cfg.Pipeline.DigestTarget, nil)

	if a.cfg.Cache.Enabled {
		deleted := a.store.Cleanup(a.cfg.Cache.MaxAgeHours)
		if deleted > 0 {
			slog.Info("cache cleanup", "deleted", deleted, "max_age_hours", a.cfg.Cache.MaxAgeHours)
		}
	}

	stats := a.store.Statistics()
	slog.Info("cache statistics",
		"count", stats.Count,
		"bytes", stats.TotalBytes,
		"root", stats.Root,
	)
}

// RunQuery is the on-demand single-asset run: smaller target, the
// queried ticker passed to the classifier as a focus hint, and cached
// matches reported alongside fresh ones.
func (a *App) RunQuery(ctx context.Context, ticker string) {
	cached := a.store.ListBySymbol(ticker, 24)
	slog.Info("cached articles for symbol", "symbol", ticker, "count", len(cached))
	for _, art := range cached {
		slog.Info("cached article", "title", art.Title, "published", art.Published.Format(time.RFC3339))
	}

	a.run(ctx, a.cfg.Pipeline.QueryTarget, []string{ticker})
}

func (a *App) run(ctx context.Context, target int, focus []string) {
	start := time.Now()
	defer func() {
		metrics.Global.RecordRunDuration(time.Since(start))
		metrics.Global.SetLastRun()
	}()

	candidates := a.collector.CollectAll(ctx, a.cfg.Feeds, a.cfg.Cache.Enabled)
	slog.Info("candidates collected", "total", len(candidates), "feeds", len(a.cfg.Feeds))

	a.processor.Focus = focus
	accepted, evaluated := a.processor.Process(ctx, candidates, target, a.cfg.Cache.Enabled)
	slog.Info("run finished",
		"accepted", len(accepted),
		"evaluated", evaluated,
		"target", target,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}
