package virality

import (
	"math"
	"strings"

	"github.com/elonfeng/dailyscope/pkg/source"
)

// Tables holds the per-source and per-sort multipliers the scorer applies.
type Tables struct {
	SourceWeights   map[string]float64
	SortMultipliers map[source.Sort]float64
}

// DefaultTables returns the built-in weights.
func DefaultTables() Tables {
	return Tables{
		SourceWeights: map[string]float64{
			"BBC":      1.2,
			"REUTERS":  1.3,
			"APNEWS":   1.3,
			"VOX":      1.0,
			"BUZZFEED": 0.8,
		},
		SortMultipliers: map[source.Sort]float64{
			source.SortHot:    1.2,
			source.SortRising: 1.1,
		},
	}
}

// Merge returns a copy of t with the entries of override laid over it.
func (t Tables) Merge(override Tables) Tables {
	out := Tables{
		SourceWeights:   make(map[string]float64, len(t.SourceWeights)+len(override.SourceWeights)),
		SortMultipliers: make(map[source.Sort]float64, len(t.SortMultipliers)+len(override.SortMultipliers)),
	}
	for _, m := range []map[string]float64{t.SourceWeights, override.SourceWeights} {
		for k, v := range m {
			out.SourceWeights[strings.ToUpper(strings.TrimSpace(k))] = v
		}
	}
	for _, m := range []map[source.Sort]float64{t.SortMultipliers, override.SortMultipliers} {
		for k, v := range m {
			out.SortMultipliers[source.Sort(strings.ToLower(strings.TrimSpace(string(k))))] = v
		}
	}
	return out
}

// Breakdown shows how a score was computed.
type Breakdown struct {
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Score      int     `json:"score"`
}

// Scorer assigns each story a virality score in [0,100]. It is safe for
// concurrent use; its tables never change after construction.
type Scorer struct {
	weights map[string]float64
	sorts   map[source.Sort]float64
}

// NewScorer creates a scorer from its own copy of t.
func NewScorer(t Tables) *Scorer {
	c := Tables{}.Merge(t)
	return &Scorer{weights: c.SourceWeights, sorts: c.SortMultipliers}
}

// Score returns the virality score of s. Stories of an unknown type score 0.
func (sc *Scorer) Score(s source.Story) int {
	return sc.Explain(s).Score
}

// Explain returns the base points, multiplier and final score of s.
func (sc *Scorer) Explain(s source.Story) Breakdown {
	var b Breakdown
	switch s.Type {
	case source.TypeNews:
		b.Base = positionPoints(s.PositionOr(source.DefaultPosition))
		b.Multiplier = sc.sourceWeight(s.Source)
	case source.TypeReddit:
		b.Base = upvotePoints(s.UpvotesOr(0))
		b.Multiplier = sc.sortMultiplier(s.Sort)
	default:
		return Breakdown{}
	}
	b.Score = clamp(int(math.Round(float64(b.Base)*b.Multiplier)), 0, 100)
	return b
}

func (sc *Scorer) sourceWeight(src string) float64 {
	if w, ok := sc.weights[strings.ToUpper(strings.TrimSpace(src))]; ok {
		return w
	}
	return 1.0
}

func (sc *Scorer) sortMultiplier(srt source.Sort) float64 {
	if m, ok := sc.sorts[source.Sort(strings.ToLower(string(srt)))]; ok {
		return m
	}
	return 1.0
}

func positionPoints(pos int) int {
	switch {
	case pos <= 3:
		return 40
	case pos <= 5:
		return 30
	case pos <= 10:
		return 20
	default:
		return 0
	}
}

func upvotePoints(upvotes int) int {
	switch {
	case upvotes >= 5000:
		return 40
	case upvotes >= 1000:
		return 30
	case upvotes >= 500:
		return 20
	case upvotes >= 100:
		return 10
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
