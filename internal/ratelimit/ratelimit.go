package ratelimit

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned by callers when Allow refuses a call.
var ErrBudgetExhausted = errors.New("AI call budget exhausted")

// Budget caps how many classification calls each AI provider may serve
// per window. Counts reset once the window elapses.
type Budget struct {
	mu        sync.Mutex
	counts    map[string]int
	limits    map[string]int
	maxTotal  int
	total     int
	window    time.Duration
	resetTime time.Time
}

// NewBudget creates a budget with per-provider limits and an overall cap.
// A limit of 0 means unlimited.
func NewBudget(limits map[string]int, maxTotal int, window time.Duration) *Budget {
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &Budget{
		counts:    make(map[string]int),
		limits:    l,
		maxTotal:  maxTotal,
		window:    window,
		resetTime: time.Now().Add(window),
	}
}

// Allow checks whether the provider may make another call.
func (b *Budget) Allow(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if limit := b.limits[provider]; limit > 0 && b.counts[provider] >= limit {
		slog.Warn("provider budget exhausted", "provider", provider, "used", b.counts[provider], "limit", limit)
		return false
	}
	if b.maxTotal > 0 && b.total >= b.maxTotal {
		slog.Warn("total AI budget exhausted", "used", b.total, "limit", b.maxTotal)
		return false
	}
	return true
}

// Record counts one completed call against the provider.
func (b *Budget) Record(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	b.counts[provider]++
	b.total++
}

// Usage reports used/limit for a provider.
func (b *Budget) Usage(provider string) (used, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return b.counts[provider], b.limits[provider]
}

func (b *Budget) checkReset() {
	if time.Now().After(b.resetTime) {
		b.counts = make(map[string]int)
		b.total = 0
		b.resetTime = time.Now().Add(b.window)
		slog.Info("AI budget window reset", "next_reset", b.resetTime.Format(time.RFC3339))
	}
}
