package stats

import (
	"maps"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Games accumulates the results of finished games. It is not safe for
// concurrent use; drivers feed it from a single collector goroutine.
type Games struct {
	Score   Statistic
	Moves   Statistic
	MaxTile Statistic

	scores []float64
	tiles  map[int]int
}

func NewGames() *Games {
	return &Games{tiles: map[int]int{}}
}

func (g *Games) Add(score, maxTile, moves int) {
	g.Score.Push(float64(score))
	g.Moves.Push(float64(moves))
	g.MaxTile.Push(float64(maxTile))
	g.scores = append(g.scores, float64(score))
	g.tiles[maxTile]++
}

func (g *Games) Count() int { return g.Score.Iterations() }

// Scores returns a copy of every score, in the order added.
func (g *Games) Scores() []float64 {
	return slices.Clone(g.scores)
}

// TileCounts maps each max tile reached to the number of games that
// ended with it.
func (g *Games) TileCounts() map[int]int {
	return maps.Clone(g.tiles)
}

// ReachRate is the fraction of games whose max tile was at least tile.
func (g *Games) ReachRate(tile int) float64 {
	if g.Count() == 0 {
		return 0
	}
	reached := lo.Sum(lo.MapToSlice(g.tiles, func(t, n int) int {
		if t >= tile {
			return n
		}
		return 0
	}))
	return float64(reached) / float64(g.Count())
}

// Quantile returns the p-quantile of the scores, p in [0, 1].
func (g *Games) Quantile(p float64) float64 {
	if len(g.scores) == 0 {
		return 0
	}
	sorted := slices.Clone(g.scores)
	slices.Sort(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Summary is a snapshot of the statistics, shaped for logs and reports.
type Summary struct {
	Games       int             `json:"games" yaml:"games"`
	MeanScore   float64         `json:"mean_score" yaml:"mean_score"`
	StdErr      float64         `json:"stderr" yaml:"stderr"`
	CI95Low     float64         `json:"ci95_low" yaml:"ci95_low"`
	CI95High    float64         `json:"ci95_high" yaml:"ci95_high"`
	MedianScore float64         `json:"median_score" yaml:"median_score"`
	BestScore   float64         `json:"best_score" yaml:"best_score"`
	MeanMoves   float64         `json:"mean_moves" yaml:"mean_moves"`
	MeanMaxTile float64         `json:"mean_max_tile" yaml:"mean_max_tile"`
	BestTile    int             `json:"best_tile" yaml:"best_tile"`
	ReachRates  map[int]float64 `json:"reach_rates" yaml:"reach_rates"`
}

// Summarize reports the reach rates of the best tile seen and of the two
// tiles below it.
func (g *Games) Summarize() Summary {
	s := Summary{
		Games:       g.Count(),
		MeanScore:   g.Score.Mean(),
		StdErr:      g.Score.StandardError(),
		MedianScore: g.Quantile(0.5),
		BestScore:   g.Score.Max(),
		MeanMoves:   g.Moves.Mean(),
		MeanMaxTile: g.MaxTile.Mean(),
		BestTile:    int(g.MaxTile.Max()),
		ReachRates:  map[int]float64{},
	}
	s.CI95Low, s.CI95High = g.Score.ConfidenceInterval(95)
	for tile := s.BestTile; tile >= 2 && len(s.ReachRates) < 3; tile /= 2 {
		s.ReachRates[tile] = g.ReachRate(tile)
	}
	return s
}
