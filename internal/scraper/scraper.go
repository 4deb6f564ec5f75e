// Package scraper fetches article pages and extracts their body text.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"coinpulse/internal/retry"
)

// Fixed sentinels returned instead of errors. Callers must compare the
// returned text against these before trusting it.
const (
	FetchFailedSentinel   = "Failed to fetch full content"
	ExtractFailedSentinel = "Failed to extract full content"
)

// maxContentChars caps extracted text; long tails add nothing to
// classification and bloat the cache.
const maxContentChars = 8000

type Scraper struct {
	client *http.Client
	retry  retry.Config
}

func New(timeout time.Duration, attempts int, delay time.Duration) *Scraper {
	if attempts < 1 {
		attempts = 1
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
		retry:  retry.Config{MaxAttempts: attempts, Delay: delay, Backoff: true},
	}
}

// ArticleText fetches the page and extracts paragraphs scoped to the
// feed's CSS class, falling back to the first generic article element.
// Never returns an error: fetch failures yield FetchFailedSentinel and
// extraction failures yield ExtractFailedSentinel.
func (s *Scraper) ArticleText(ctx context.Context, url, selector string) string {
	var doc *goquery.Document

	err := retry.Do(ctx, s.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		return err
	})
	if err != nil {
		slog.Warn("article fetch failed", "url", url, "error", err)
		return FetchFailedSentinel
	}

	content := extractParagraphs(doc, selector)
	if content == "" {
		slog.Warn("article extraction failed", "url", url, "selector", selector)
		return ExtractFailedSentinel
	}
	return cleanContent(content)
}

// extractParagraphs tries the configured class first, then the generic
// article fallback.
func extractParagraphs(doc *goquery.Document, selector string) string {
	selectors := []string{}
	if selector != "" {
		selectors = append(selectors, "."+selector+" p")
	}
	selectors = append(selectors, "article p", ".article-body p", ".post-content p", "main p")

	for _, sel := range selectors {
		var paragraphs []string
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 10 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n")
		}
	}
	return ""
}

// cleanContent normalizes whitespace and caps the length on a paragraph
// boundary.
func cleanContent(content string) string {
	lines := strings.Split(content, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		junk := false
		for _, indicator := range []string{"cookie", "subscribe", "newsletter", "advertisement", "sign up", "read more"} {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if !junk {
			cleaned = append(cleaned, strings.Join(strings.Fields(line), " "))
		}
	}

	result := strings.Join(cleaned, "\n\n")
	if len(result) <= maxContentChars {
		return result
	}

	paragraphs := strings.Split(result, "\n\n")
	var kept []string
	total := 0
	for _, p := range paragraphs {
		if total+len(p) > maxContentChars {
			break
		}
		kept = append(kept, p)
		total += len(p) + 2
	}
	if len(kept) == 0 {
		return result[:maxContentChars]
	}
	return strings.Join(kept, "\n\n")
}
