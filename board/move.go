package board

import "fmt"

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every direction in priority order. Move selection breaks
// ties in favor of the earlier direction.
var Directions = [...]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

const rowCount = 1 << 16

// Precomputed slides of a single 16-bit row. Nibble 0 of a row is column 0,
// so a left slide moves tiles toward nibble 0.
var (
	rowLeft       [rowCount]uint16
	rowRight      [rowCount]uint16
	rowLeftScore  [rowCount]int32
	rowRightScore [rowCount]int32
)

func init() {
	for r := range rowCount {
		row := uint16(r)
		var line [Size]uint8
		for i := range Size {
			line[i] = uint8(row>>(4*i)) & 0xf
		}
		out, score := slideLine(line)
		rowLeft[row] = packLine(out)
		rowLeftScore[row] = int32(score)

		rev := reverseLine(line)
		out, score = slideLine(rev)
		rowRight[row] = packLine(reverseLine(out))
		rowRightScore[row] = int32(score)
	}
}

// slideLine moves the tiles of a line toward index 0: it drops empty cells,
// merges adjacent equal exponents into one exponent higher, and compacts
// again. A tile merges at most once. Two 15s do not merge since the result
// would not fit in a cell. The score is the sum of the merged tile values.
func slideLine(line [Size]uint8) ([Size]uint8, int) {
	var out [Size]uint8
	n := 0
	score := 0
	mergeable := false
	for _, e := range line {
		if e == 0 {
			continue
		}
		if mergeable && out[n-1] == e && e < MaxExponent {
			out[n-1]++
			score += 1 << out[n-1]
			mergeable = false
			continue
		}
		out[n] = e
		n++
		mergeable = true
	}
	return out, score
}

func reverseLine(line [Size]uint8) [Size]uint8 {
	return [Size]uint8{line[3], line[2], line[1], line[0]}
}

func packLine(line [Size]uint8) uint16 {
	var row uint16
	for i, e := range line {
		row |= uint16(e) << (4 * i)
	}
	return row
}

func slideRows(b Board, table *[rowCount]uint16, scores *[rowCount]int32) (Board, int) {
	var out Board
	score := 0
	for r := range Size {
		row := b.row(r)
		out |= Board(table[row]) << (16 * uint(r))
		score += int(scores[row])
	}
	return out, score
}

// Move applies a move and returns the afterstate (the board before a new
// tile spawns), the score gained from merges, and whether anything changed.
// When moved is false the returned board equals b.
func (b Board) Move(d Direction) (after Board, score int, moved bool) {
	switch d {
	case Left:
		after, score = slideRows(b, &rowLeft, &rowLeftScore)
	case Right:
		after, score = slideRows(b, &rowRight, &rowRightScore)
	case Up:
		after, score = slideRows(b.Transpose(), &rowLeft, &rowLeftScore)
		after = after.Transpose()
	case Down:
		after, score = slideRows(b.Transpose(), &rowRight, &rowRightScore)
		after = after.Transpose()
	default:
		return b, 0, false
	}
	return after, score, after != b
}

// LegalMoves returns the directions that change the board, in priority order.
func (b Board) LegalMoves() []Direction {
	var legal []Direction
	for _, d := range Directions {
		if _, _, moved := b.Move(d); moved {
			legal = append(legal, d)
		}
	}
	return legal
}

// IsTerminal reports whether no move changes the board.
func (b Board) IsTerminal() bool {
	for _, d := range Directions {
		if _, _, moved := b.Move(d); moved {
			return false
		}
	}
	return true
}
