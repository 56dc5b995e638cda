// Package player chooses moves by one-ply lookahead over afterstate values.
package player

import (
	"errors"

	"github.com/samber/lo"

	"github.com/jgc10/2048-ai/board"
)

// ErrTerminalBoard is returned when a move is requested for a board that
// has none. Callers should check board.IsTerminal first.
var ErrTerminalBoard = errors.New("move requested on a terminal board")

// Evaluator estimates the value of an afterstate. *ntuple.Network
// implements it.
type Evaluator interface {
	Evaluate(b board.Board) float64
}

// A Heuristic adds a hand-written term to the value of an afterstate.
type Heuristic interface {
	Bonus(after board.Board) float64
}

// A Candidate is one legal move and how it was valued.
type Candidate struct {
	Direction  board.Direction
	Afterstate board.Board
	Score      int
	Value      float64
}

// Greedy picks the legal move maximizing score + value(afterstate), plus
// any heuristics. Ties go to the earliest direction in board.Directions.
type Greedy struct {
	eval       Evaluator
	heuristics []Heuristic
}

func NewGreedy(eval Evaluator, heuristics ...Heuristic) *Greedy {
	return &Greedy{eval: eval, heuristics: heuristics}
}

// Candidates values every legal move of b, in direction priority order.
func (g *Greedy) Candidates(b board.Board) []Candidate {
	var out []Candidate
	for _, d := range board.Directions {
		after, score, moved := b.Move(d)
		if !moved {
			continue
		}
		v := float64(score) + g.eval.Evaluate(after)
		if len(g.heuristics) > 0 {
			v += lo.SumBy(g.heuristics, func(h Heuristic) float64 { return h.Bonus(after) })
		}
		out = append(out, Candidate{Direction: d, Afterstate: after, Score: score, Value: v})
	}
	return out
}

func best(cands []Candidate) Candidate {
	top := cands[0]
	for _, c := range cands[1:] {
		if c.Value > top.Value {
			top = c
		}
	}
	return top
}

func (g *Greedy) BestMove(b board.Board) (Candidate, error) {
	cands := g.Candidates(b)
	if len(cands) == 0 {
		return Candidate{}, ErrTerminalBoard
	}
	return best(cands), nil
}

// Explore returns a uniformly random legal move with probability epsilon,
// and the best move otherwise. The second result reports which one it was.
func (g *Greedy) Explore(b board.Board, rng board.Rand, epsilon float64) (Candidate, bool, error) {
	cands := g.Candidates(b)
	if len(cands) == 0 {
		return Candidate{}, false, ErrTerminalBoard
	}
	if epsilon > 0 && rng.Float64() < epsilon {
		return cands[rng.Intn(len(cands))], true, nil
	}
	return best(cands), false, nil
}
