package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsCollected        int64
	FeedErrors            int64
	CandidatesCollected   int64
	CandidatesProcessed   int64
	ArticlesAccepted      int64
	ClassificationErrors  int64
	CacheHits             int64
	ArticlesCached        int64

	// Timings
	LastRunDuration    time.Duration
	TotalRunDuration   time.Duration
	AverageRunDuration time.Duration
	RunCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddFeedCollected(candidates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsCollected++
	m.CandidatesCollected += int64(candidates)
}

func (m *Metrics) IncrementFeedErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedErrors++
}

func (m *Metrics) IncrementCandidatesProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CandidatesProcessed++
}

func (m *Metrics) IncrementArticlesAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesAccepted++
}

func (m *Metrics) IncrementClassificationErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassificationErrors++
}

func (m *Metrics) IncrementCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *Metrics) IncrementArticlesCached() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesCached++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++

	if m.RunCount > 0 {
		m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.RunCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_collected":         m.FeedsCollected,
		"feed_errors":             m.FeedErrors,
		"candidates_collected":    m.CandidatesCollected,
		"candidates_processed":    m.CandidatesProcessed,
		"articles_accepted":       m.ArticlesAccepted,
		"classification_errors":   m.ClassificationErrors,
		"cache_hits":              m.CacheHits,
		"articles_cached":         m.ArticlesCached,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
