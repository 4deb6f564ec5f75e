// Package ai defines the relevance/summarization classifier and its
// interchangeable backends.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Analysis is the structured classification result for one article.
type Analysis struct {
	Summary        string   `json:"summary"`
	CleanedContent string   `json:"cleaned_content"`
	Symbols        []string `json:"symbols"`
	RelevanceScore float64  `json:"relevance_score"`
	IsRelevant     bool     `json:"is_relevant"`
	Reasoning      string   `json:"reasoning"`
}

// Analyzer classifies one article. Implementations are selected by
// configuration; orchestration code depends only on this interface.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, title, content string, focusSymbols []string) (*Analysis, error)
}

// buildPrompt assembles the classification prompt. Content is truncated
// to maxChars before this is called.
func buildPrompt(title, content string, focusSymbols []string) string {
	var b strings.Builder
	b.WriteString("You are a crypto news analyst. Analyze the article below.\n\n")
	b.WriteString("TITLE: " + title + "\n\n")
	b.WriteString("CONTENT:\n" + content + "\n\n")
	if len(focusSymbols) > 0 {
		b.WriteString("Pay particular attention to these assets: " + strings.Join(focusSymbols, ", ") + "\n\n")
	}
	b.WriteString(`Respond with a single JSON object and nothing else:
{
  "summary": "2-3 sentence summary",
  "cleaned_content": "article text with boilerplate removed",
  "symbols": ["ticker codes of crypto assets the article is about"],
  "relevance_score": 0.0,
  "is_relevant": true,
  "reasoning": "one sentence on why this is or is not relevant crypto market news"
}
relevance_score is between 0 and 1. is_relevant means the article carries
actionable crypto market news rather than noise.`)
	return b.String()
}

// truncateContent cuts on a rune boundary, then tries to end at a
// sentence so the model does not see a torn-off word.
func truncateContent(content string, maxChars int) string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r", ""))
	content = strings.Join(strings.Fields(content), " ")
	if maxChars <= 0 || utf8.RuneCountInString(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	trimmed := string(runes[:maxChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > maxChars/4 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}

// parseAnalysis extracts the first balanced JSON object from the model
// response, tolerating prose and code-fence wrappers.
func parseAnalysis(response string) (*Analysis, error) {
	raw, err := extractJSONObject(response)
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if a.RelevanceScore < 0 {
		a.RelevanceScore = 0
	}
	if a.RelevanceScore > 1 {
		a.RelevanceScore = 1
	}
	return &a, nil
}

// extractJSONObject returns the first balanced {...} in s, skipping
// braces inside JSON strings.
func extractJSONObject(s string) ([]byte, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in response")
}
