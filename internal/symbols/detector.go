// Package symbols scores free text against a list of tracked asset
// tickers and full names, returning mentions with a confidence value.
package symbols

import (
	"regexp"
	"sort"
	"strings"
)

// TrackedSymbol is a ticker plus full human name forming the detection
// vocabulary. Supplied by the asset registry, read-only here.
type TrackedSymbol struct {
	Ticker string
	Name   string
}

type MatchType string

const (
	MatchFullName  MatchType = "full_name"
	MatchTicker    MatchType = "ticker"
	MatchVariation MatchType = "variation"
)

// Match is one detection result for a single symbol.
type Match struct {
	Ticker     string
	Name       string
	Confidence float64
	Type       MatchType
	Matched    string
}

// ConfidenceThreshold is the minimum confidence for a match to be reported.
const ConfidenceThreshold = 0.6

// contextWindow is the number of characters inspected on each side of the
// first ticker occurrence for domain keywords.
const contextWindow = 100

const (
	boostPerKeyword = 0.05
	boostCap        = 0.15
)

// contextKeywords is the crypto-domain vocabulary used for the ticker
// context boost. Short tickers collide with ordinary words, so nearby
// domain terms raise confidence that the mention is the asset.
var contextKeywords = []string{
	"crypto", "cryptocurrency", "blockchain", "token", "coin",
	"exchange", "trading", "price", "market", "rally",
	"wallet", "mining", "defi", "altcoin", "bullish", "bearish",
}

// Detect returns the tracked symbols mentioned in text, ordered by
// descending confidence, restricted to matches at or above
// ConfidenceThreshold. Per symbol the single best match across all
// match types is kept.
func Detect(text string, tracked []TrackedSymbol) []Match {
	var out []Match
	for _, sym := range tracked {
		if sym.Ticker == "" {
			continue
		}
		best, ok := scoreSymbol(text, sym)
		if ok && best.Confidence >= ConfidenceThreshold {
			out = append(out, best)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Tickers flattens matches into ticker codes, preserving order.
func Tickers(matches []Match) []string {
	ts := make([]string, 0, len(matches))
	for _, m := range matches {
		ts = append(ts, m.Ticker)
	}
	return ts
}

// scoreSymbol evaluates every match type independently and keeps the
// highest-confidence one.
func scoreSymbol(text string, sym TrackedSymbol) (Match, bool) {
	var best Match
	found := false

	consider := func(m Match) {
		if !found || m.Confidence > best.Confidence {
			best = m
			found = true
		}
	}

	if sym.Name != "" {
		if matched := findWholeWord(text, sym.Name); matched != "" {
			consider(Match{
				Ticker:     sym.Ticker,
				Name:       sym.Name,
				Confidence: 1.0,
				Type:       MatchFullName,
				Matched:    matched,
			})
		}
	}

	if matched := findWholeWord(text, sym.Ticker); matched != "" {
		conf := tickerBaseConfidence(sym.Ticker) + contextBoost(text, sym.Ticker)
		if conf > 1.0 {
			conf = 1.0
		}
		consider(Match{
			Ticker:     sym.Ticker,
			Name:       sym.Name,
			Confidence: conf,
			Type:       MatchTicker,
			Matched:    matched,
		})
	}

	// Variations count once per symbol regardless of how many patterns hit.
	if matched := findVariation(text, sym); matched != "" {
		consider(Match{
			Ticker:     sym.Ticker,
			Name:       sym.Name,
			Confidence: 0.9,
			Type:       MatchVariation,
			Matched:    matched,
		})
	}

	return best, found
}

// tickerBaseConfidence scales by ticker length: short codes collide with
// ordinary words far more often, so they start lower.
func tickerBaseConfidence(ticker string) float64 {
	switch {
	case len(ticker) >= 4:
		return 0.95
	case len(ticker) == 3:
		return 0.85
	default:
		return 0.70
	}
}

// contextBoost inspects a window around the first ticker occurrence for
// domain keywords. Each distinct keyword adds boostPerKeyword, capped at
// boostCap. Applies only to the plain ticker match.
func contextBoost(text, ticker string) float64 {
	loc := wholeWordPattern(ticker).FindStringIndex(text)
	if loc == nil {
		return 0
	}

	start := loc[0] - contextWindow
	if start < 0 {
		start = 0
	}
	end := loc[1] + contextWindow
	if end > len(text) {
		end = len(text)
	}
	window := strings.ToLower(text[start:end])

	boost := 0.0
	for _, kw := range contextKeywords {
		if strings.Contains(window, kw) {
			boost += boostPerKeyword
			if boost >= boostCap {
				return boostCap
			}
		}
	}
	return boost
}

// findVariation checks the recognized variation patterns: possessive,
// hyphenated adjective, and /usd or /usdt trading-pair suffix.
func findVariation(text string, sym TrackedSymbol) string {
	patterns := []string{
		regexp.QuoteMeta(sym.Ticker) + `'s`,
		regexp.QuoteMeta(sym.Ticker) + `-[a-z]+`,
		regexp.QuoteMeta(sym.Ticker) + `/usdt?`,
	}
	if sym.Name != "" {
		patterns = append(patterns, regexp.QuoteMeta(sym.Name)+`'s`)
	}
	for _, p := range patterns {
		re := regexp.MustCompile(`(?i)\b` + p + `\b`)
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// findWholeWord does a case-insensitive whole-word search, returning the
// matched substring or "".
func findWholeWord(text, word string) string {
	if word == "" {
		return ""
	}
	return wholeWordPattern(word).FindString(text)
}

func wholeWordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
}
