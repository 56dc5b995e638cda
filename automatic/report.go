package automatic

import (
	"io"
	"slices"

	"github.com/aybabtme/uniplot/histogram"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jgc10/2048-ai/stats"
)

// WriteReport prints a human-readable summary of g: score statistics, max
// tile distribution and a score histogram.
func WriteReport(w io.Writer, g *stats.Games) error {
	p := message.NewPrinter(language.English)
	s := g.Summarize()
	p.Fprintf(w, "Games played: %d\n", s.Games)
	if s.Games == 0 {
		return nil
	}
	p.Fprintf(w, "Mean score: %.1f (95%% CI %.1f - %.1f)\n", s.MeanScore, s.CI95Low, s.CI95High)
	p.Fprintf(w, "Median score: %d  Best score: %d\n", int(s.MedianScore), int(s.BestScore))
	p.Fprintf(w, "Mean moves: %.1f  Mean max tile: %.1f\n", s.MeanMoves, s.MeanMaxTile)

	counts := g.TileCounts()
	tiles := make([]int, 0, len(counts))
	for t := range counts {
		tiles = append(tiles, t)
	}
	slices.Sort(tiles)
	slices.Reverse(tiles)
	p.Fprintf(w, "\nMax tile   games   reached\n")
	for _, t := range tiles {
		p.Fprintf(w, "%8d %7d %8.2f%%\n", t, counts[t], 100*g.ReachRate(t))
	}

	p.Fprintf(w, "\nScores:\n")
	hist := histogram.Hist(15, g.Scores())
	return histogram.Fprint(w, hist, histogram.Linear(40))
}
