package ntuple

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/board"
)

// Network is an n-tuple value function. Evaluate may run concurrently from
// any number of goroutines; writers (learning passes, loads, saves) take the
// embedded lock exclusively and use the NoLock methods inside it.
type Network struct {
	sync.RWMutex

	tuples  TupleSet
	weights *Weights
	// memoryFraction bounds the dense tables of weight files loaded later.
	memoryFraction float64
	// cells[s][t] holds, for tuple t read through symmetry s, the cells of
	// the untransformed board to read, most significant digit first.
	cells [NumSymmetries][]Tuple
}

// A Feature is one table lookup made while evaluating a board.
type Feature struct {
	Tuple    int
	Symmetry Symmetry
	Index    uint64
}

func NewNetwork(ts TupleSet, opts Options) (*Network, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	w, err := newWeights(ts, opts)
	if err != nil {
		return nil, err
	}
	n := &Network{tuples: ts, weights: w, memoryFraction: opts.MemoryFraction}
	for _, s := range Symmetries() {
		n.cells[s] = make([]Tuple, len(ts))
		for t, tup := range ts {
			cells := make(Tuple, len(tup))
			for j, c := range tup {
				cells[j] = s.Cell(c)
			}
			n.cells[s][t] = cells
		}
	}
	log.Debug().Int("tuples", len(ts)).Int("features", n.NumFeatures()).Msg("created-network")
	return n, nil
}

func (n *Network) Tuples() TupleSet { return n.tuples }

// Weights exposes the tables. Callers must hold the appropriate lock.
func (n *Network) Weights() *Weights { return n.weights }

// NumFeatures is the number of lookups per evaluation: eight symmetries
// times the number of tuples.
func (n *Network) NumFeatures() int {
	return NumSymmetries * len(n.tuples)
}

func index(b board.Board, cells Tuple) uint64 {
	var idx uint64
	for _, c := range cells {
		idx = idx<<4 | uint64(b.At(c))
	}
	return idx
}

// Evaluate returns the sum of the weights of every tuple over every
// symmetry of b.
func (n *Network) Evaluate(b board.Board) float64 {
	n.RLock()
	defer n.RUnlock()
	return n.EvaluateNoLock(b)
}

// EvaluateNoLock is Evaluate for callers already holding the lock.
//
// The eight lookups of a tuple are summed in ascending index order. Any
// symmetric image of b produces the same eight indexes per tuple, so it
// evaluates to the bit-identical value.
func (n *Network) EvaluateNoLock(b board.Board) float64 {
	var total float64
	var idx [NumSymmetries]uint64
	for t := range n.tuples {
		for s := range idx {
			idx[s] = index(b, n.cells[s][t])
		}
		slices.Sort(idx[:])
		l := &n.weights.luts[t]
		var sum float64
		for _, i := range idx {
			sum += l.get(i)
		}
		total += sum
	}
	return total
}

// Features lists every lookup Evaluate makes for b, symmetry-major.
func (n *Network) Features(b board.Board) []Feature {
	out := make([]Feature, 0, n.NumFeatures())
	for _, s := range Symmetries() {
		for t := range n.tuples {
			out = append(out, Feature{Tuple: t, Symmetry: s, Index: index(b, n.cells[s][t])})
		}
	}
	return out
}

// UpdateNoLock adds delta to every entry Evaluate reads for b. An entry
// read more than once receives delta once per read. The caller must hold
// the write lock.
func (n *Network) UpdateNoLock(b board.Board, delta float64) {
	for s := range n.cells {
		for t, cells := range n.cells[s] {
			n.weights.luts[t].add(index(b, cells), delta)
		}
	}
}
