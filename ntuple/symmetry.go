package ntuple

import (
	"fmt"

	"github.com/jgc10/2048-ai/board"
)

// A Symmetry is one of the eight elements of the dihedral group of the
// square, acting on boards by permuting cells.
type Symmetry uint8

const NumSymmetries = 8

const (
	Identity Symmetry = iota
	Mirror
	Rotate90
	Rotate90Mirror
	Rotate180
	Rotate180Mirror
	Rotate270
	Rotate270Mirror
)

// A permutation maps a cell of the transformed board to the cell of the
// original board it is read from: T(b)[i] = b[p[i]].
type permutation [board.NumCells]board.Cell

var (
	symmetryPerms [NumSymmetries]permutation
	inverses      [NumSymmetries]Symmetry
	compositions  [NumSymmetries][NumSymmetries]Symmetry
)

// then returns the permutation of applying p first and q second.
func (p permutation) then(q permutation) permutation {
	var r permutation
	for i := range r {
		r[i] = p[q[i]]
	}
	return r
}

func init() {
	var id, rot, mirror permutation
	for r := range board.Size {
		for c := range board.Size {
			i := board.CellAt(r, c)
			id[i] = i
			// clockwise quarter turn
			rot[i] = board.CellAt(board.Size-1-c, r)
			// flip over the horizontal axis
			mirror[i] = board.CellAt(board.Size-1-r, c)
		}
	}
	turn := id
	for k := range 4 {
		symmetryPerms[2*k] = turn
		symmetryPerms[2*k+1] = turn.then(mirror)
		turn = turn.then(rot)
	}

	find := func(p permutation) Symmetry {
		for s, q := range symmetryPerms {
			if p == q {
				return Symmetry(s)
			}
		}
		panic(fmt.Sprintf("permutation %v is not a board symmetry", p))
	}
	for s := range symmetryPerms {
		for t := range symmetryPerms {
			compositions[s][t] = find(symmetryPerms[s].then(symmetryPerms[t]))
			if compositions[s][t] == Identity {
				inverses[s] = Symmetry(t)
			}
		}
	}
}

// Symmetries returns all eight symmetries, identity first.
func Symmetries() [NumSymmetries]Symmetry {
	var out [NumSymmetries]Symmetry
	for i := range out {
		out[i] = Symmetry(i)
	}
	return out
}

// Apply returns the transformed board.
func (s Symmetry) Apply(b board.Board) board.Board {
	p := &symmetryPerms[s]
	var out board.Board
	for i := range board.Cell(board.NumCells) {
		out = out.With(i, b.At(p[i]))
	}
	return out
}

// Cell returns the cell of the original board that lands on cell c of the
// transformed board.
func (s Symmetry) Cell(c board.Cell) board.Cell {
	return symmetryPerms[s][c]
}

func (s Symmetry) Inverse() Symmetry {
	return inverses[s]
}

// Then returns the symmetry equivalent to applying s and then t.
func (s Symmetry) Then(t Symmetry) Symmetry {
	return compositions[s][t]
}

func (s Symmetry) String() string {
	switch s {
	case Identity:
		return "identity"
	case Mirror:
		return "mirror"
	case Rotate90:
		return "rot90"
	case Rotate90Mirror:
		return "rot90+mirror"
	case Rotate180:
		return "rot180"
	case Rotate180Mirror:
		return "rot180+mirror"
	case Rotate270:
		return "rot270"
	case Rotate270Mirror:
		return "rot270+mirror"
	}
	return fmt.Sprintf("symmetry(%d)", uint8(s))
}
