package player

import (
	"math"

	"github.com/jgc10/2048-ai/board"
)

// CornerBonus rewards afterstates that keep the largest tile in a corner
// and penalizes large tiles elsewhere. Reaching 1024 and above earns an
// extra bonus that grows with the tile.
type CornerBonus struct{}

func isCorner(c board.Cell) bool {
	r, col := c.Row(), c.Col()
	return (r == 0 || r == board.Size-1) && (col == 0 || col == board.Size-1)
}

// maxCell returns the first cell, row-major, holding the largest tile.
func maxCell(b board.Board) (board.Cell, int) {
	var at board.Cell
	var top uint8
	for i := range board.Cell(board.NumCells) {
		if e := b.At(i); e > top {
			top, at = e, i
		}
	}
	if top == 0 {
		return 0, 0
	}
	return at, 1 << top
}

func (CornerBonus) Bonus(after board.Board) float64 {
	at, tile := maxCell(after)
	var v float64
	if isCorner(at) {
		if tile >= 256 {
			v = float64(tile / 2)
		}
	} else if tile >= 512 {
		v = -float64(tile * 4 / 5)
	}
	if tile >= 1024 {
		v += milestoneBonus(tile)
	}
	return v
}

func milestoneBonus(tile int) float64 {
	switch tile {
	case 1024:
		return 200
	case 2048:
		return 2800
	case 4096:
		return 15300
	}
	t := float64(tile)
	return math.Pow(t/1024, 2)*200 + math.Pow(t/2048, 2)*2000 + math.Pow(t/4096, 2.5)*10000
}
