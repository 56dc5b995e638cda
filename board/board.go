// Package board models the 4x4 board of 2048. A Board is an immutable
// value: sixteen 4-bit tile exponents packed into a uint64.
package board

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Size     = 4
	NumCells = Size * Size
	// MaxExponent is the largest exponent a cell can hold (tile 32768).
	MaxExponent = 15
)

var ErrExponentOutOfRange = errors.New("tile exponent out of range")

// Board holds the exponent of cell (r, c) in bits [4*(4r+c), 4*(4r+c)+4).
// Row 0 is the top row, column 0 the leftmost. 0 means empty, k means the
// tile 2^k.
type Board uint64

// A Cell is the index 4*row + col of a board cell.
type Cell uint8

func CellAt(row, col int) Cell {
	return Cell(row*Size + col)
}

func (c Cell) Row() int { return int(c) / Size }
func (c Cell) Col() int { return int(c) % Size }

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row(), c.Col())
}

// FromExponents builds a board from row-major exponents.
func FromExponents(exps [NumCells]int) (Board, error) {
	var b Board
	for i, e := range exps {
		if e < 0 || e > MaxExponent {
			return 0, fmt.Errorf("%w: cell %v holds %d", ErrExponentOutOfRange, Cell(i), e)
		}
		b |= Board(e) << (4 * i)
	}
	return b, nil
}

// FromTiles builds a board from tile values (0, 2, 4, 8, ...).
func FromTiles(tiles [Size][Size]int) (Board, error) {
	var exps [NumCells]int
	for r := range Size {
		for c := range Size {
			v := tiles[r][c]
			if v == 0 {
				continue
			}
			if v < 2 || v&(v-1) != 0 {
				return 0, fmt.Errorf("%w: cell %v holds %d, not a power of two",
					ErrExponentOutOfRange, CellAt(r, c), v)
			}
			e := 0
			for v > 1 {
				v >>= 1
				e++
			}
			exps[r*Size+c] = e
		}
	}
	return FromExponents(exps)
}

// At returns the exponent at cell c.
func (b Board) At(c Cell) uint8 {
	return uint8(b>>(4*uint(c))) & 0xf
}

// With returns a copy of b with exponent e written at cell c. Only the low
// four bits of e are used.
func (b Board) With(c Cell, e uint8) Board {
	shift := 4 * uint(c)
	return b&^(0xf<<shift) | Board(e&0xf)<<shift
}

// Exponents returns the row-major exponents of the board.
func (b Board) Exponents() [NumCells]uint8 {
	var out [NumCells]uint8
	for i := range out {
		out[i] = b.At(Cell(i))
	}
	return out
}

func (b Board) row(r int) uint16 {
	return uint16(b >> (16 * uint(r)))
}

// Transpose mirrors the board across its main diagonal.
func (b Board) Transpose() Board {
	x := uint64(b)
	a1 := x & 0xF0F00F0FF0F00F0F
	a2 := x & 0x0000F0F00000F0F0
	a3 := x & 0x0F0F00000F0F0000
	a := a1 | (a2 << 12) | (a3 >> 12)
	b1 := a & 0xFF00FF0000FF00FF
	b2 := a & 0x00FF00FF00000000
	b3 := a & 0x00000000FF00FF00
	return Board(b1 | (b2 >> 24) | (b3 << 24))
}

// EmptyCells lists the empty cells in index order.
func (b Board) EmptyCells() []Cell {
	cells := make([]Cell, 0, NumCells)
	for i := range Cell(NumCells) {
		if b.At(i) == 0 {
			cells = append(cells, i)
		}
	}
	return cells
}

func (b Board) EmptyCount() int {
	n := 0
	for i := range Cell(NumCells) {
		if b.At(i) == 0 {
			n++
		}
	}
	return n
}

func (b Board) MaxExponent() uint8 {
	var m uint8
	for i := range Cell(NumCells) {
		if e := b.At(i); e > m {
			m = e
		}
	}
	return m
}

// MaxTile returns the value of the largest tile, or 0 on an empty board.
func (b Board) MaxTile() int {
	e := b.MaxExponent()
	if e == 0 {
		return 0
	}
	return 1 << e
}

// String renders the board as a grid of tile values, for logs and tests.
func (b Board) String() string {
	var sb strings.Builder
	sb.WriteString("+------+------+------+------+\n")
	for r := range Size {
		for c := range Size {
			e := b.At(CellAt(r, c))
			if e == 0 {
				sb.WriteString("|     .")
			} else {
				fmt.Fprintf(&sb, "|%6d", 1<<e)
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+------+------+------+------+")
	return sb.String()
}
