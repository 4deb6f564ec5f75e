package news

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coinpulse/internal/ai"
	"coinpulse/internal/feeds"
	"coinpulse/internal/ratelimit"
	"coinpulse/internal/store"
	"coinpulse/internal/symbols"
)

type fakeFetcher struct {
	text  string
	calls int
}

func (f *fakeFetcher) ArticleText(ctx context.Context, url, selector string) string {
	f.calls++
	return f.text
}

type fakeAnalyzer struct {
	fn    func(title string) (*ai.Analysis, error)
	calls int
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, title, content string, focus []string) (*ai.Analysis, error) {
	f.calls++
	return f.fn(title)
}

type fakeSaver struct {
	saved []store.Article
	err   error
}

func (f *fakeSaver) Save(a *store.Article) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, *a)
	return "fake/path.txt", nil
}

func entry(title string, age time.Duration) feeds.Entry {
	return feeds.Entry{
		Source:    "test",
		Title:     title,
		Link:      "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Published: time.Now().Add(-age),
	}
}

func relevantAnalysis(title string) *ai.Analysis {
	return &ai.Analysis{
		Summary:        "summary of " + title,
		CleanedContent: "cleaned " + title,
		RelevanceScore: 0.8,
		IsRelevant:     true,
		Reasoning:      "market moving",
	}
}

func TestProcess_StopsAtTarget(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return relevantAnalysis(title), nil
	}}
	saver := &fakeSaver{}
	p := &Processor{
		Fetcher:  &fakeFetcher{text: "body"},
		Analyzer: analyzer,
		Store:    saver,
	}

	candidates := []feeds.Entry{
		entry("One", time.Hour), entry("Two", 2*time.Hour), entry("Three", 3*time.Hour),
		entry("Four", 4*time.Hour), entry("Five", 5*time.Hour),
	}

	accepted, processed := p.Process(context.Background(), candidates, 2, true)
	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(accepted))
	}
	if processed != 2 {
		t.Errorf("expected exactly 2 evaluated, got %d", processed)
	}
	if analyzer.calls != 2 {
		t.Errorf("expected 2 classification calls, got %d", analyzer.calls)
	}
	if len(saver.saved) != 2 {
		t.Errorf("expected 2 persisted articles, got %d", len(saver.saved))
	}
}

func TestProcess_EvaluatesPrefixEndingAtNthRelevant(t *testing.T) {
	relevant := map[string]bool{"Two": true, "Four": true, "Five": true}
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		a := relevantAnalysis(title)
		a.IsRelevant = relevant[title]
		return a, nil
	}}
	p := &Processor{Fetcher: &fakeFetcher{text: "body"}, Analyzer: analyzer}

	candidates := []feeds.Entry{
		entry("One", time.Hour), entry("Two", 2*time.Hour), entry("Three", 3*time.Hour),
		entry("Four", 4*time.Hour), entry("Five", 5*time.Hour),
	}

	accepted, processed := p.Process(context.Background(), candidates, 2, false)
	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(accepted))
	}
	if accepted[0].Title != "Two" || accepted[1].Title != "Four" {
		t.Errorf("expected the relevant prefix [Two Four], got [%s %s]", accepted[0].Title, accepted[1].Title)
	}
	if processed != 4 {
		t.Errorf("expected evaluation to stop after the 2nd relevant candidate, processed %d", processed)
	}
}

func TestProcess_FewerRelevantThanTarget(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		a := relevantAnalysis(title)
		a.IsRelevant = title == "Two"
		return a, nil
	}}
	p := &Processor{Fetcher: &fakeFetcher{text: "body"}, Analyzer: analyzer}

	candidates := []feeds.Entry{entry("One", time.Hour), entry("Two", 2*time.Hour), entry("Three", 3*time.Hour)}

	accepted, processed := p.Process(context.Background(), candidates, 5, false)
	if len(accepted) != 1 {
		t.Errorf("expected 1 accepted, got %d", len(accepted))
	}
	if processed != 3 {
		t.Errorf("expected the whole stream evaluated, processed %d", processed)
	}
}

func TestProcess_SingleFreshCandidateScenario(t *testing.T) {
	// "Old News" (30h) never reaches the processor: the collector's 24h
	// window drops it. The processor sees only the fresh candidate.
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return relevantAnalysis(title), nil
	}}
	saver := &fakeSaver{}
	p := &Processor{Fetcher: &fakeFetcher{text: "body"}, Analyzer: analyzer, Store: saver}

	candidates := []feeds.Entry{entry("Bitcoin Breaks $100k Milestone", time.Hour)}

	accepted, processed := p.Process(context.Background(), candidates, 1, false)
	if len(accepted) != 1 || accepted[0].Title != "Bitcoin Breaks $100k Milestone" {
		t.Fatalf("unexpected accepted set: %+v", accepted)
	}
	if processed != 1 {
		t.Errorf("expected total_processed 1, got %d", processed)
	}
	if len(saver.saved) != 0 {
		t.Errorf("cache disabled, expected no persistence, got %d saves", len(saver.saved))
	}
}

func TestProcess_ClassificationFailureIsFailOpen(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return nil, errors.New("model unavailable")
	}}
	saver := &fakeSaver{}
	p := &Processor{Fetcher: &fakeFetcher{text: "raw body text"}, Analyzer: analyzer, Store: saver}

	accepted, processed := p.Process(context.Background(), []feeds.Entry{entry("Degraded", time.Hour)}, 1, true)
	if processed != 1 || len(accepted) != 1 {
		t.Fatalf("fail-open candidate must be retained: accepted=%d processed=%d", len(accepted), processed)
	}

	a := accepted[0]
	if !a.Relevant {
		t.Error("fail-open article must be marked relevant")
	}
	if a.Summary != "" {
		t.Errorf("expected empty summary, got %q", a.Summary)
	}
	if a.Content != "raw body text" {
		t.Errorf("expected raw body as content, got %q", a.Content)
	}
	if a.RelevanceScore != 0 {
		t.Errorf("expected zero score, got %v", a.RelevanceScore)
	}
	if !strings.Contains(a.Notes, "model unavailable") {
		t.Errorf("expected failure note, got %q", a.Notes)
	}
	if len(saver.saved) != 1 {
		t.Errorf("fail-open article must still be persisted, got %d saves", len(saver.saved))
	}
}

func TestProcess_BudgetExhaustionTakesDegradedPath(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return relevantAnalysis(title), nil
	}}
	p := &Processor{
		Fetcher:  &fakeFetcher{text: "body"},
		Analyzer: analyzer,
		Budget:   ratelimit.NewBudget(map[string]int{"fake": 1}, 1, time.Hour),
	}

	candidates := []feeds.Entry{entry("One", time.Hour), entry("Two", 2*time.Hour)}
	accepted, _ := p.Process(context.Background(), candidates, 2, false)

	if analyzer.calls != 1 {
		t.Errorf("expected 1 classification call under a budget of 1, got %d", analyzer.calls)
	}
	if len(accepted) != 2 {
		t.Fatalf("expected both candidates accepted, got %d", len(accepted))
	}
	if !strings.Contains(accepted[1].Notes, "budget") {
		t.Errorf("expected budget note on the degraded article, got %q", accepted[1].Notes)
	}
}

func TestProcess_MergesDetectorAndClassifierSymbols(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		a := relevantAnalysis(title)
		a.Symbols = []string{"eth", "BTC"}
		return a, nil
	}}
	p := &Processor{
		Fetcher:  &fakeFetcher{text: "Bitcoin sets a new record"},
		Analyzer: analyzer,
		Tracked:  []symbols.TrackedSymbol{{Ticker: "BTC", Name: "Bitcoin"}},
	}

	accepted, _ := p.Process(context.Background(), []feeds.Entry{entry("Record Day", time.Hour)}, 1, false)
	if len(accepted) != 1 {
		t.Fatal("expected one accepted article")
	}

	got := accepted[0].Symbols
	if len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Errorf("expected merged symbols [BTC ETH], got %v", got)
	}
}

func TestProcess_UsesCleanedContentWhenPresent(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return relevantAnalysis(title), nil
	}}
	p := &Processor{Fetcher: &fakeFetcher{text: "raw"}, Analyzer: analyzer}

	accepted, _ := p.Process(context.Background(), []feeds.Entry{entry("Clean Me", time.Hour)}, 1, false)
	if accepted[0].Content != "cleaned Clean Me" {
		t.Errorf("expected cleaned content, got %q", accepted[0].Content)
	}
}

func TestProcess_SaveFailureDoesNotAbortRun(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(title string) (*ai.Analysis, error) {
		return relevantAnalysis(title), nil
	}}
	saver := &fakeSaver{err: errors.New("disk full")}
	p := &Processor{Fetcher: &fakeFetcher{text: "body"}, Analyzer: analyzer, Store: saver}

	candidates := []feeds.Entry{entry("One", time.Hour), entry("Two", 2*time.Hour)}
	accepted, processed := p.Process(context.Background(), candidates, 2, true)
	if len(accepted) != 2 || processed != 2 {
		t.Errorf("save failures must not abort: accepted=%d processed=%d", len(accepted), processed)
	}
}
