// Package tdlearn trains an n-tuple network with backward TD(0) updates
// over finished episodes.
package tdlearn

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/board"
	"github.com/jgc10/2048-ai/ntuple"
)

// A Step is one move of an episode: the board after the move's merges and
// before the spawn, and the score the move earned.
type Step struct {
	Afterstate board.Board
	Reward     int
}

// An Episode is the steps of one game, oldest first.
type Episode []Step

func (e *Episode) Record(after board.Board, reward int) {
	*e = append(*e, Step{Afterstate: after, Reward: reward})
}

// Score is the total reward of the episode.
func (e Episode) Score() int {
	total := 0
	for _, s := range e {
		total += s.Reward
	}
	return total
}

type Summary struct {
	Updates      int
	MeanAbsError float64
}

type Learner struct {
	net          *ntuple.Network
	learningRate float64
}

func NewLearner(net *ntuple.Network, learningRate float64) *Learner {
	return &Learner{net: net, learningRate: learningRate}
}

func (l *Learner) LearningRate() float64 { return l.learningRate }

// Learn walks the episode from its last step to its first. The last
// afterstate is moved toward 0; every earlier one toward the reward and
// value of its successor, read after the successor's own update. The
// network is locked for the whole pass.
func (l *Learner) Learn(ep Episode) Summary {
	if len(ep) < 2 {
		return Summary{}
	}
	l.net.Lock()
	defer l.net.Unlock()

	features := float64(l.net.NumFeatures())
	var absErr float64
	for i := len(ep) - 1; i >= 0; i-- {
		target := 0.0
		if i < len(ep)-1 {
			target = float64(ep[i+1].Reward) + l.net.EvaluateNoLock(ep[i+1].Afterstate)
		}
		tdErr := target - l.net.EvaluateNoLock(ep[i].Afterstate)
		l.net.UpdateNoLock(ep[i].Afterstate, l.learningRate*tdErr/features)
		absErr += math.Abs(tdErr)
	}
	s := Summary{Updates: len(ep), MeanAbsError: absErr / float64(len(ep))}
	log.Debug().Int("updates", s.Updates).Float64("mean-abs-error", s.MeanAbsError).
		Msg("td-pass")
	return s
}
