package tdlearn

import (
	"bytes"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/jgc10/2048-ai/board"
	"github.com/jgc10/2048-ai/ntuple"
)

func pairNetwork(t *testing.T) *ntuple.Network {
	t.Helper()
	ts, err := ntuple.NewTupleSet([][][2]int{{{0, 0}, {0, 1}}})
	if err != nil {
		t.Fatal(err)
	}
	n, err := ntuple.NewNetwork(ts, ntuple.Options{DenseMaxArity: 4})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// cornerBoard has nonzero, pairwise distinct (corner, edge neighbor) pairs,
// so each of its eight lookups through a two-cell corner tuple is a
// different table entry.
func cornerBoard() board.Board {
	var b board.Board
	for i := range board.Cell(board.NumCells) {
		b = b.With(i, uint8(i))
	}
	return b.With(board.CellAt(0, 0), 15)
}

func snapshot(t *testing.T, n *ntuple.Network) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEpisodeRecord(t *testing.T) {
	is := is.New(t)
	var ep Episode
	ep.Record(board.Board(1), 4)
	ep.Record(board.Board(2), 8)
	is.Equal(len(ep), 2)
	is.Equal(ep[1], Step{Afterstate: board.Board(2), Reward: 8})
	is.Equal(ep.Score(), 12)
}

func TestLearnTwoSteps(t *testing.T) {
	is := is.New(t)
	n := pairNetwork(t)
	a0 := cornerBoard()
	var a1 board.Board // empty: every lookup reads index 0, left at 0

	feats := n.Features(a0)
	seen := map[uint64]bool{}
	for i, f := range feats {
		is.True(f.Index != 0)
		is.True(!seen[f.Index])
		seen[f.Index] = true
		n.Weights().Set(0, f.Index, float64(i+1)*0.375)
	}
	before := map[uint64]float64{}
	for _, f := range feats {
		before[f.Index] = n.Weights().Get(0, f.Index)
	}
	v0 := n.Evaluate(a0)
	is.Equal(n.Evaluate(a1), 0.0)

	const lr = 0.1
	sum := NewLearner(n, lr).Learn(Episode{{a0, 4}, {a1, 0}})
	is.Equal(sum.Updates, 2)

	delta := lr * (0 - v0) / float64(n.NumFeatures())
	for _, f := range feats {
		is.Equal(n.Weights().Get(0, f.Index), before[f.Index]+delta)
	}
	is.Equal(n.Weights().Get(0, 0), 0.0)
}

func TestLearnIsSequential(t *testing.T) {
	is := is.New(t)
	a0 := cornerBoard()
	// a1 shares entries with a0, so the update of a1 changes the target of a0.
	a1 := a0.With(board.CellAt(3, 3), 2)
	ep := Episode{{a0, 4}, {a1, 8}}
	const lr = 0.25

	seed := func(n *ntuple.Network) {
		for i, f := range n.Features(a0) {
			n.Weights().Set(0, f.Index, float64(i)-2.5)
		}
		for i, f := range n.Features(a1) {
			n.Weights().Add(0, f.Index, float64(i)*0.5)
		}
	}

	learned := pairNetwork(t)
	seed(learned)
	NewLearner(learned, lr).Learn(ep)

	manual := pairNetwork(t)
	seed(manual)
	k := float64(manual.NumFeatures())
	err1 := 0 - manual.Evaluate(a1)
	manual.UpdateNoLock(a1, lr*err1/k)
	err0 := 8 + manual.Evaluate(a1) - manual.Evaluate(a0)
	manual.UpdateNoLock(a0, lr*err0/k)
	is.Equal(snapshot(t, learned), snapshot(t, manual))

	forward := pairNetwork(t)
	seed(forward)
	f0 := 8 + forward.Evaluate(a1) - forward.Evaluate(a0)
	forward.UpdateNoLock(a0, lr*f0/k)
	f1 := 0 - forward.Evaluate(a1)
	forward.UpdateNoLock(a1, lr*f1/k)
	is.True(!bytes.Equal(snapshot(t, learned), snapshot(t, forward)))
}

func TestLearnShortEpisodes(t *testing.T) {
	is := is.New(t)
	n := pairNetwork(t)
	for i, f := range n.Features(cornerBoard()) {
		n.Weights().Set(0, f.Index, float64(i))
	}
	want := snapshot(t, n)
	l := NewLearner(n, 0.1)

	is.Equal(l.Learn(nil), Summary{})
	is.Equal(l.Learn(Episode{{cornerBoard(), 4}}), Summary{})
	is.Equal(snapshot(t, n), want)
}

func TestLearnConverges(t *testing.T) {
	n := pairNetwork(t)
	a0 := cornerBoard()
	var a1 board.Board
	l := NewLearner(n, 0.5)
	for range 200 {
		l.Learn(Episode{{a0, 4}, {a1, 8}})
	}
	// a1 is terminal and stays at 0, so a0 settles at a1's reward.
	assert.InDelta(t, 8.0, n.Evaluate(a0), 1e-6)
	assert.InDelta(t, 0.0, n.Evaluate(a1), 1e-6)
}
