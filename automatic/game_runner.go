// Package automatic plays 2048 games with a network-driven player, for
// training and for evaluation runs.
package automatic

import (
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/jgc10/2048-ai/board"
	"github.com/jgc10/2048-ai/player"
	"github.com/jgc10/2048-ai/tdlearn"
)

// GameResult is the outcome of one game.
type GameResult struct {
	Game     int
	Seed     [32]byte
	Score    int
	MaxTile  int
	Moves    int
	Explored int
	Epsilon  float64
	Final    board.Board
}

// CSVHeader is the header line of the game log.
const CSVHeader = "game,seed,score,maxtile,moves,explored,epsilon,tderror\n"

// CSVLine formats a result as one game log row.
func (g GameResult) CSVLine(tdErr float64) string {
	return fmt.Sprintf("%d,%s,%d,%d,%d,%d,%.6f,%.4f\n",
		g.Game, base64.RawURLEncoding.EncodeToString(g.Seed[:]),
		g.Score, g.MaxTile, g.Moves, g.Explored, g.Epsilon, tdErr)
}

// GameRunner plays games with one player. A runner is used by a single
// goroutine; the network behind its player may be shared.
type GameRunner struct {
	player *player.Greedy
}

func NewGameRunner(p *player.Greedy) *GameRunner {
	return &GameRunner{player: p}
}

// PlayGame plays a game from two spawned tiles until no move is left. All
// randomness comes from seed, so a game is reproducible for a fixed
// network. Each move is recorded in the returned episode as its afterstate
// and score.
func (r *GameRunner) PlayGame(game int, seed [32]byte, epsilon float64) (GameResult, tdlearn.Episode, error) {
	rng := frand.NewCustom(seed[:], 1024, 12)
	res := GameResult{Game: game, Seed: seed, Epsilon: epsilon}
	var ep tdlearn.Episode

	b := board.New(rng)
	for !b.IsTerminal() {
		c, explored, err := r.player.Explore(b, rng, epsilon)
		if err != nil {
			return res, ep, err
		}
		if explored {
			res.Explored++
		}
		ep.Record(c.Afterstate, c.Score)
		res.Score += c.Score
		res.Moves++
		b = c.Afterstate.SpawnTile(rng)
	}
	res.Final = b
	res.MaxTile = b.MaxTile()
	log.Debug().Int("game", game).Int("score", res.Score).Int("max-tile", res.MaxTile).
		Int("moves", res.Moves).Msg("game-over")
	return res, ep, nil
}
