package source

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxTitleLength bounds story titles, in runes.
const DefaultMaxTitleLength = 200

// Filter drops malformed stories and applies title rules before scoring.
type Filter struct {
	maxTitle int
	exclude  []string
}

// NewFilter creates a filter. Titles are cut to maxTitle runes; stories whose
// title contains any exclude keyword are dropped.
func NewFilter(maxTitle int, excludeKeywords []string) *Filter {
	if maxTitle <= 0 {
		maxTitle = DefaultMaxTitleLength
	}

	var exclude []string
	for _, kw := range excludeKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			exclude = append(exclude, kw)
		}
	}

	return &Filter{maxTitle: maxTitle, exclude: exclude}
}

// Apply returns the well-formed stories in their original order and how many were dropped.
// The input slice is not modified.
func (f *Filter) Apply(stories []Story) ([]Story, int) {
	out := make([]Story, 0, len(stories))
	for _, s := range stories {
		s.Title = strings.TrimSpace(s.Title)
		s.URL = strings.TrimSpace(s.URL)
		if s.Title == "" || s.URL == "" {
			continue
		}
		if f.excluded(s.Title) {
			continue
		}
		s.Title = truncateRunes(s.Title, f.maxTitle)
		out = append(out, s)
	}
	return out, len(stories) - len(out)
}

func (f *Filter) excluded(title string) bool {
	if len(f.exclude) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range f.exclude {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
