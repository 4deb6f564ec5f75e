// Package store is the filesystem-backed archive of accepted articles.
// One file per article in a single flat directory; each record is a
// plain-text metadata header followed by the content body.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Article is the durable record written once a candidate passes
// relevance classification. The link is the identity key.
type Article struct {
	Source    string
	Title     string
	Link      string
	Published time.Time
	Fetched   time.Time
	Content   string
	Symbols   []string

	// AI enrichment, optional. Zero values on the degraded path.
	Summary        string
	RelevanceScore float64
	Relevant       bool
	Notes          string
}

// Stats describes the store contents. Observational only.
type Stats struct {
	Count      int
	TotalBytes int64
	OldestAge  time.Duration
	NewestAge  time.Duration
	Root       string
}

// Store persists articles under one flat root directory. Not safe for
// concurrent writers; callers run one pipeline at a time.
type Store struct {
	root string
}

// New resolves the root directory. This is the one fail-closed path in
// the store: an unusable root aborts instead of silently dropping the
// only persistence target.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", root, err)
	}
	probe := filepath.Join(root, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return nil, fmt.Errorf("store: root %s not writable: %w", root, err)
	}
	os.Remove(probe)
	return &Store{root: root}, nil
}

// Root returns the resolved root directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes the article, overwriting any record with the same
// source+title filename.
func (s *Store) Save(a *Article) (string, error) {
	if a.Link == "" || a.Title == "" {
		return "", fmt.Errorf("store: article needs link and title")
	}

	name := fmt.Sprintf("%s_%s.txt", slugify(a.Source), slugify(a.Title))
	path := filepath.Join(s.root, name)

	var b strings.Builder
	writeField := func(key, value string) {
		if value != "" {
			b.WriteString(key + ": " + singleLine(value) + "\n")
		}
	}
	writeField("source", a.Source)
	writeField("title", a.Title)
	writeField("link", a.Link)
	writeField("published", a.Published.Format(time.RFC3339))
	writeField("fetched", a.Fetched.Format(time.RFC3339))
	writeField("symbols", strings.Join(a.Symbols, ", "))
	writeField("summary", a.Summary)
	if a.RelevanceScore != 0 {
		writeField("relevance_score", strconv.FormatFloat(a.RelevanceScore, 'f', -1, 64))
	}
	writeField("relevant", strconv.FormatBool(a.Relevant))
	writeField("notes", a.Notes)
	b.WriteString("\n")
	b.WriteString(a.Content)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("store: write %s: %w", path, err)
	}
	return path, nil
}

// Load parses a stored record. Any missing file, malformed header or I/O
// error reads as not found.
func (s *Store) Load(path string) (*Article, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	header, body, ok := strings.Cut(string(data), "\n\n")
	if !ok {
		return nil, false
	}

	a := &Article{Content: body}
	for _, line := range strings.Split(header, "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		switch key {
		case "source":
			a.Source = value
		case "title":
			a.Title = value
		case "link":
			a.Link = value
		case "published":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, false
			}
			a.Published = t
		case "fetched":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, false
			}
			a.Fetched = t
		case "symbols":
			for _, sym := range strings.Split(value, ",") {
				if sym = strings.TrimSpace(sym); sym != "" {
					a.Symbols = append(a.Symbols, sym)
				}
			}
		case "summary":
			a.Summary = value
		case "relevance_score":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				a.RelevanceScore = f
			}
		case "relevant":
			a.Relevant = value == "true"
		case "notes":
			a.Notes = value
		}
	}

	if a.Source == "" || a.Title == "" || a.Link == "" || a.Published.IsZero() {
		return nil, false
	}
	return a, true
}

// Exists reports whether any stored record carries this link. Linear
// directory scan; fine at the store's expected scale.
func (s *Store) Exists(link string) bool {
	for _, path := range s.recordPaths() {
		if a, ok := s.Load(path); ok && a.Link == link {
			return true
		}
	}
	return false
}

// ListBySymbol returns articles mentioning the symbol published within
// the last hours.
func (s *Store) ListBySymbol(symbol string, hours int) []Article {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var out []Article
	for _, path := range s.recordPaths() {
		a, ok := s.Load(path)
		if !ok || a.Published.Before(cutoff) {
			continue
		}
		for _, sym := range a.Symbols {
			if strings.EqualFold(sym, symbol) {
				out = append(out, *a)
				break
			}
		}
	}
	return out
}

// Cleanup deletes articles published before now minus maxAgeHours and
// returns how many were removed. Unparseable records are skipped, not
// deleted, and never abort the sweep.
func (s *Store) Cleanup(maxAgeHours int) int {
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)
	deleted := 0
	for _, path := range s.recordPaths() {
		a, ok := s.Load(path)
		if !ok {
			slog.Warn("skipping unreadable cache record", "path", path)
			continue
		}
		if a.Published.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to delete cache record", "path", path, "error", err)
				continue
			}
			deleted++
		}
	}
	return deleted
}

// Statistics scans the store and reports record count, size on disk and
// the age spread of stored articles.
func (s *Store) Statistics() Stats {
	st := Stats{Root: s.root}
	now := time.Now()
	var oldest, newest time.Time

	for _, path := range s.recordPaths() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		a, ok := s.Load(path)
		if !ok {
			continue
		}
		st.Count++
		st.TotalBytes += info.Size()
		if oldest.IsZero() || a.Published.Before(oldest) {
			oldest = a.Published
		}
		if newest.IsZero() || a.Published.After(newest) {
			newest = a.Published
		}
	}
	if st.Count > 0 {
		st.OldestAge = now.Sub(oldest)
		st.NewestAge = now.Sub(newest)
	}
	return st
}

func (s *Store) recordPaths() []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		paths = append(paths, filepath.Join(s.root, e.Name()))
	}
	return paths
}

// slugify turns a title into a safe filename fragment.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 80 {
		out = strings.Trim(out[:80], "-")
	}
	if out == "" {
		out = "untitled"
	}
	return out
}

// singleLine keeps header values on one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
