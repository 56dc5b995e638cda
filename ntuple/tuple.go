// Package ntuple implements an n-tuple network: an additive value function
// over 2048 boards made of one lookup table per tuple of cells, evaluated
// over all eight symmetries of the board.
package ntuple

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgc10/2048-ai/board"
)

// MaxArity bounds the number of cells in a tuple. Table indexes are packed
// base-16 into a uint64.
const MaxArity = 8

var ErrInvalidTuple = errors.New("invalid tuple")

// A Tuple is an ordered list of cells. The first cell is the most
// significant base-16 digit of the tuple's table index.
type Tuple []board.Cell

func (t Tuple) Arity() int { return len(t) }

// Size is the number of entries in the tuple's index space, 16^arity.
func (t Tuple) Size() uint64 {
	return 1 << (4 * uint(len(t)))
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (t Tuple) validate() error {
	if len(t) == 0 || len(t) > MaxArity {
		return fmt.Errorf("%w: arity %d not in 1..%d", ErrInvalidTuple, len(t), MaxArity)
	}
	var seen [board.NumCells]bool
	for _, c := range t {
		if int(c) >= board.NumCells {
			return fmt.Errorf("%w: cell index %d off the board", ErrInvalidTuple, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: cell %v repeated", ErrInvalidTuple, c)
		}
		seen[c] = true
	}
	return nil
}

// A TupleSet is the fixed, ordered collection of tuples of a network.
type TupleSet []Tuple

// NewTupleSet builds a tuple set from (row, col) coordinates.
func NewTupleSet(coords [][][2]int) (TupleSet, error) {
	ts := make(TupleSet, len(coords))
	for i, tc := range coords {
		t := make(Tuple, len(tc))
		for j, rc := range tc {
			if rc[0] < 0 || rc[0] >= board.Size || rc[1] < 0 || rc[1] >= board.Size {
				return nil, fmt.Errorf("%w: tuple %d: coordinate (%d,%d) off the board",
					ErrInvalidTuple, i, rc[0], rc[1])
			}
			t[j] = board.CellAt(rc[0], rc[1])
		}
		ts[i] = t
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

func mustTupleSet(coords [][][2]int) TupleSet {
	ts, err := NewTupleSet(coords)
	if err != nil {
		panic(err)
	}
	return ts
}

func (ts TupleSet) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("%w: empty tuple set", ErrInvalidTuple)
	}
	for i, t := range ts {
		if err := t.validate(); err != nil {
			return fmt.Errorf("tuple %d: %w", i, err)
		}
	}
	return nil
}

func (ts TupleSet) Equal(other TupleSet) bool {
	if len(ts) != len(other) {
		return false
	}
	for i := range ts {
		if len(ts[i]) != len(other[i]) {
			return false
		}
		for j := range ts[i] {
			if ts[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Coords returns the tuple set as (row, col) coordinates.
func (ts TupleSet) Coords() [][][2]int {
	out := make([][][2]int, len(ts))
	for i, t := range ts {
		out[i] = make([][2]int, len(t))
		for j, c := range t {
			out[i][j] = [2]int{c.Row(), c.Col()}
		}
	}
	return out
}
