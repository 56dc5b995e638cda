package player

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
	"lukechampine.com/frand"

	"github.com/jgc10/2048-ai/board"
)

type evalFunc func(board.Board) float64

func (f evalFunc) Evaluate(b board.Board) float64 { return f(b) }

var zeroEval = evalFunc(func(board.Board) float64 { return 0 })

func mustTiles(t *testing.T, tiles [board.Size][board.Size]int) board.Board {
	t.Helper()
	b, err := board.FromTiles(tiles)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBestMoveTieBreak(t *testing.T) {
	is := is.New(t)
	// Left and Right both merge for 4; Down moves for nothing; Up is illegal.
	b := mustTiles(t, [board.Size][board.Size]int{{2, 2}})
	g := NewGreedy(zeroEval)

	cands := g.Candidates(b)
	is.Equal(len(cands), 3)
	is.Equal(cands[0].Direction, board.Down)
	is.Equal(cands[1].Value, cands[2].Value)

	for range 10 {
		c, err := g.BestMove(b)
		is.NoErr(err)
		is.Equal(c.Direction, board.Left)
		is.Equal(c.Score, 4)
	}
}

func TestBestMoveUsesEvaluator(t *testing.T) {
	is := is.New(t)
	b := mustTiles(t, [board.Size][board.Size]int{{2, 2}})
	right, _, _ := b.Move(board.Right)
	g := NewGreedy(evalFunc(func(after board.Board) float64 {
		if after == right {
			return 0.5
		}
		return 0
	}))
	c, err := g.BestMove(b)
	is.NoErr(err)
	is.Equal(c.Direction, board.Right)
	is.Equal(c.Afterstate, right)
	is.Equal(c.Value, 4.5)
}

func TestBestMoveTerminal(t *testing.T) {
	is := is.New(t)
	b := mustTiles(t, [board.Size][board.Size]int{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	})
	is.True(b.IsTerminal())
	_, err := NewGreedy(zeroEval).BestMove(b)
	is.True(errors.Is(err, ErrTerminalBoard))

	var seed [32]byte
	_, _, err = NewGreedy(zeroEval).Explore(b, frand.NewCustom(seed[:], 1024, 12), 1)
	is.True(errors.Is(err, ErrTerminalBoard))
}

func TestExplore(t *testing.T) {
	is := is.New(t)
	var seed [32]byte
	copy(seed[:], "explore")
	rng := frand.NewCustom(seed[:], 1024, 12)
	b := mustTiles(t, [board.Size][board.Size]int{{2, 2}})
	g := NewGreedy(zeroEval)

	for range 20 {
		c, explored, err := g.Explore(b, rng, 0)
		is.NoErr(err)
		is.True(!explored)
		is.Equal(c.Direction, board.Left)
	}

	seen := map[board.Direction]bool{}
	for range 200 {
		c, explored, err := g.Explore(b, rng, 1)
		is.NoErr(err)
		is.True(explored)
		seen[c.Direction] = true
	}
	is.Equal(len(seen), 3)
	is.True(!seen[board.Up])
}

func TestCornerBonus(t *testing.T) {
	var h CornerBonus
	cases := []struct {
		name  string
		tiles [board.Size][board.Size]int
		want  float64
	}{
		{"empty", [board.Size][board.Size]int{}, 0},
		{"small-corner", [board.Size][board.Size]int{{128}}, 0},
		{"corner-256", [board.Size][board.Size]int{{256, 2}}, 128},
		{"center-256", [board.Size][board.Size]int{{}, {0, 256}}, 0},
		{"center-512", [board.Size][board.Size]int{{}, {0, 512}}, -409},
		{"corner-2048", [board.Size][board.Size]int{{}, {}, {}, {0, 0, 0, 2048}}, 1024 + 2800},
		{"edge-2048", [board.Size][board.Size]int{{}, {0, 0, 2048}}, -1638 + 2800},
		{"corner-8192", [board.Size][board.Size]int{{8192}}, 4096 + 12800 + 32000 + 56568.542},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, h.Bonus(mustTiles(t, tc.tiles)), 1e-3)
		})
	}
}

func TestGreedyWithHeuristic(t *testing.T) {
	is := is.New(t)
	// Left and Up are illegal. Right keeps the 256 in a corner, Down does not.
	b := mustTiles(t, [board.Size][board.Size]int{{256}, {4}})
	g := NewGreedy(zeroEval, CornerBonus{})

	cands := g.Candidates(b)
	is.Equal(len(cands), 2)
	is.Equal(cands[0].Direction, board.Down)
	is.Equal(cands[0].Value, 0.0)
	is.Equal(cands[1].Direction, board.Right)
	is.Equal(cands[1].Value, 128.0)

	c, err := g.BestMove(b)
	is.NoErr(err)
	is.Equal(c.Direction, board.Right)
}
