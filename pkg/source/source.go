package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StoryType discriminates which scoring branch applies to a story.
type StoryType string

const (
	TypeNews   StoryType = "news"
	TypeReddit StoryType = "reddit"
)

// Sort is the Reddit listing sort a story was fetched with.
type Sort string

const (
	SortHot           Sort = "hot"
	SortRising        Sort = "rising"
	SortTop           Sort = "top"
	SortNew           Sort = "new"
	SortBest          Sort = "best"
	SortControversial Sort = "controversial"
)

// KnownSorts lists the listing sorts Reddit serves.
var KnownSorts = []Sort{SortHot, SortRising, SortTop, SortNew, SortBest, SortControversial}

// ParseSort normalizes s and reports whether it is a listing sort Reddit serves.
func ParseSort(s string) (Sort, bool) {
	srt := Sort(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range KnownSorts {
		if srt == k {
			return srt, true
		}
	}
	return srt, false
}

// DefaultPosition is the rank assumed for a news story whose position is unknown.
const DefaultPosition = 10

// Story is the normalized record every collector produces.
type Story struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Type        StoryType `json:"type"`
	Position    *int      `json:"position,omitempty"`
	Upvotes     *int      `json:"score,omitempty"`
	Sort        Sort      `json:"sort,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// PositionOr returns the 1-based position, or def when it is absent or not a valid rank.
func (s Story) PositionOr(def int) int {
	if s.Position == nil || *s.Position < 1 {
		return def
	}
	return *s.Position
}

// UpvotesOr returns the upvote count, or def when it is absent.
func (s Story) UpvotesOr(def int) int {
	if s.Upvotes == nil {
		return def
	}
	return *s.Upvotes
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Unit is one independently collected piece of work: a news site or a (subreddit, sort) pair.
type Unit struct {
	Type   StoryType `json:"type"`
	Source string    `json:"source"`
	Sort   Sort      `json:"sort,omitempty"`
}

// NewsUnit returns the unit for a news site id.
func NewsUnit(site string) Unit {
	return Unit{Type: TypeNews, Source: strings.ToLower(strings.TrimSpace(site))}
}

// RedditUnit returns the unit for a subreddit listed with the given sort.
func RedditUnit(sub string, sort Sort) Unit {
	return Unit{Type: TypeReddit, Source: strings.TrimSpace(sub), Sort: sort}
}

func (u Unit) String() string {
	if u.Type == TypeReddit {
		return fmt.Sprintf("r/%s/%s", u.Source, u.Sort)
	}
	return u.Source
}

// Batch is the outcome of collecting one unit: stories on success, the reason on failure.
type Batch struct {
	Unit    Unit
	Stories []Story
	Err     error
}

// Failed reports whether the collector for this unit failed.
func (b Batch) Failed() bool { return b.Err != nil }

// Collector fetches the stories of a single unit of work.
type Collector interface {
	Unit() Unit
	Collect(ctx context.Context) ([]Story, error)
}

// DefaultLimit caps the stories a collector yields per unit.
const DefaultLimit = 10
