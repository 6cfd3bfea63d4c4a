package virality

import (
	"cmp"
	"slices"

	"github.com/elonfeng/dailyscope/pkg/source"
)

// ScoredStory is a story with its computed virality score.
type ScoredStory struct {
	source.Story
	ViralityScore int `json:"virality_score"`
}

// Aggregate concatenates the stories of all successful batches, keeping
// batch order and the order within each batch.
func Aggregate(batches []source.Batch) []source.Story {
	n := 0
	for _, b := range batches {
		if !b.Failed() {
			n += len(b.Stories)
		}
	}

	out := make([]source.Story, 0, n)
	for _, b := range batches {
		if b.Failed() {
			continue
		}
		out = append(out, b.Stories...)
	}
	return out
}

// ScoreAll scores every story, keeping input order.
func ScoreAll(sc *Scorer, stories []source.Story) []ScoredStory {
	out := make([]ScoredStory, len(stories))
	for i, s := range stories {
		out[i] = ScoredStory{Story: s, ViralityScore: sc.Score(s)}
	}
	return out
}

// Rank returns at most maxResults stories ordered by descending score.
// Ties keep their input order. The input slice is left untouched.
func Rank(stories []ScoredStory, maxResults int) []ScoredStory {
	if maxResults <= 0 {
		return []ScoredStory{}
	}

	ranked := slices.Clone(stories)
	if ranked == nil {
		ranked = []ScoredStory{}
	}
	slices.SortStableFunc(ranked, func(a, b ScoredStory) int {
		return cmp.Compare(b.ViralityScore, a.ViralityScore)
	})

	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked
}
