package sink

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/elonfeng/dailyscope/pkg/virality"
)

// Table prints the ranking as an aligned text table.
type Table struct {
	w      io.Writer
	scorer *virality.Scorer
}

// NewTable creates a table sink. When scorer is non-nil the table also shows
// how each score was computed.
func NewTable(w io.Writer, scorer *virality.Scorer) *Table {
	return &Table{w: w, scorer: scorer}
}

func (t *Table) Name() string { return "table" }

func (t *Table) Write(_ context.Context, out Output) error {
	if len(out.Stories) == 0 {
		_, err := fmt.Fprintln(t.w, "no stories found")
		return err
	}

	w := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
	if t.scorer != nil {
		fmt.Fprintln(w, "RANK\tSCORE\tBASE\tMULT\tSOURCE\tTITLE\tURL")
	} else {
		fmt.Fprintln(w, "RANK\tSCORE\tSOURCE\tTITLE\tURL")
	}

	for i, s := range out.Stories {
		if t.scorer != nil {
			b := t.scorer.Explain(s.Story)
			fmt.Fprintf(w, "%d\t%d\t%d\t%.2f\t%s\t%s\t%s\n",
				i+1, s.ViralityScore, b.Base, b.Multiplier, label(s), s.Title, s.URL)
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", i+1, s.ViralityScore, label(s), s.Title, s.URL)
	}
	return w.Flush()
}

func label(s virality.ScoredStory) string {
	if s.Sort != "" {
		return fmt.Sprintf("%s (%s)", s.Source, s.Sort)
	}
	return s.Source
}
