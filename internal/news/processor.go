// Package news walks the sorted candidate stream, enriches and
// classifies each entry, and persists accepted articles until the
// target count is reached.
package news

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"coinpulse/internal/ai"
	"coinpulse/internal/feeds"
	"coinpulse/internal/metrics"
	"coinpulse/internal/ratelimit"
	"coinpulse/internal/store"
	"coinpulse/internal/symbols"
)

// Fetcher resolves a candidate's full body text. Implementations never
// return an error; failures come back as fixed sentinel strings.
type Fetcher interface {
	ArticleText(ctx context.Context, url, selector string) string
}

// Saver persists one accepted article.
type Saver interface {
	Save(a *store.Article) (string, error)
}

// Processor evaluates candidates strictly in the given order and stops
// once the accepted count reaches the target. Classification failures
// are fail-open: the candidate is kept as relevant with degraded
// metadata (no summary, raw body, zero score) so a classifier outage
// degrades digest quality instead of silencing the run. The policy is
// applied on every path, including an exhausted call budget.
type Processor struct {
	Fetcher  Fetcher
	Analyzer ai.Analyzer
	Store    Saver
	Tracked  []symbols.TrackedSymbol
	Budget   *ratelimit.Budget
	Focus    []string

	// now is overridable in tests; the Fetched timestamp comes from it.
	now func() time.Time
}

// Process walks the candidates and returns the accepted articles plus
// the number of candidates actually evaluated.
func (p *Processor) Process(ctx context.Context, candidates []feeds.Entry, target int, cacheEnabled bool) ([]store.Article, int) {
	clock := p.now
	if clock == nil {
		clock = time.Now
	}

	var accepted []store.Article
	processed := 0

	for _, entry := range candidates {
		if target > 0 && len(accepted) >= target {
			break
		}
		processed++
		metrics.Global.IncrementCandidatesProcessed()

		content := p.Fetcher.ArticleText(ctx, entry.Link, entry.Selector)
		detected := symbols.Detect(entry.Title+" "+content, p.Tracked)

		article := store.Article{
			Source:    entry.Source,
			Title:     entry.Title,
			Link:      entry.Link,
			Published: entry.Published,
			Fetched:   clock(),
			Content:   content,
			Symbols:   symbols.Tickers(detected),
		}

		analysis, err := p.classify(ctx, entry.Title, content)
		if err != nil {
			slog.Warn("classification failed, keeping candidate", "title", entry.Title, "error", err)
			metrics.Global.IncrementClassificationErrors()
			article.Relevant = true
			article.Notes = "classification failed: " + err.Error()
		} else {
			article.Relevant = analysis.IsRelevant
			article.Summary = analysis.Summary
			article.RelevanceScore = analysis.RelevanceScore
			article.Notes = analysis.Reasoning
			if cleaned := strings.TrimSpace(analysis.CleanedContent); cleaned != "" {
				article.Content = cleaned
			}
			article.Symbols = mergeSymbols(article.Symbols, analysis.Symbols)
		}

		if !article.Relevant {
			slog.Debug("candidate rejected", "title", entry.Title, "score", article.RelevanceScore)
			continue
		}

		accepted = append(accepted, article)
		metrics.Global.IncrementArticlesAccepted()
		slog.Info("article accepted", "title", entry.Title, "score", article.RelevanceScore, "symbols", article.Symbols)

		// Persist right away so a crash mid-run loses at most the
		// in-flight candidate.
		if cacheEnabled && p.Store != nil {
			if _, err := p.Store.Save(&article); err != nil {
				slog.Error("failed to cache article", "title", entry.Title, "error", err)
			} else {
				metrics.Global.IncrementArticlesCached()
			}
		}
	}

	return accepted, processed
}

func (p *Processor) classify(ctx context.Context, title, content string) (*ai.Analysis, error) {
	if p.Budget != nil && !p.Budget.Allow(p.Analyzer.Name()) {
		return nil, ratelimit.ErrBudgetExhausted
	}
	analysis, err := p.Analyzer.Analyze(ctx, title, content, p.Focus)
	if p.Budget != nil {
		p.Budget.Record(p.Analyzer.Name())
	}
	return analysis, err
}

// mergeSymbols unions detector and classifier tickers, detector order
// first, preserving first occurrence.
func mergeSymbols(detected, fromAI []string) []string {
	seen := make(map[string]bool, len(detected)+len(fromAI))
	out := make([]string, 0, len(detected)+len(fromAI))
	for _, group := range [][]string{detected, fromAI} {
		for _, sym := range group {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}
