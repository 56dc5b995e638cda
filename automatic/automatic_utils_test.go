package automatic

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/jgc10/2048-ai/board"
	"github.com/jgc10/2048-ai/config"
	"github.com/jgc10/2048-ai/ntuple"
	"github.com/jgc10/2048-ai/player"
	"github.com/jgc10/2048-ai/progress"
	"github.com/jgc10/2048-ai/results"
)

type recordingPublisher struct {
	mu      sync.Mutex
	reports []progress.Report
}

func (p *recordingPublisher) Publish(_ context.Context, r progress.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestTrainerRun(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	net := smallNetwork(t)
	opts := Options{
		Episodes:        20,
		Threads:         4,
		Learn:           true,
		LearningRate:    0.01,
		CheckpointEvery: 5,
		ReportEvery:     10,
		ModelPath:       filepath.Join(dir, "model.ntn"),
		GameLog:         filepath.Join(dir, "games.csv"),
		Layout:          "small",
	}
	store, err := results.Open(filepath.Join(dir, "results.db"))
	is.NoErr(err)
	defer store.Close()
	pub := &recordingPublisher{}

	tr := NewTrainer(net, player.NewGreedy(net), opts)
	tr.SetStore(store)
	tr.SetPublisher(pub)
	before := GamesPlayed.Value()

	games, err := tr.Run(context.Background())
	is.NoErr(err)
	is.Equal(games.Count(), 20)
	is.Equal(GamesPlayed.Value()-before, int64(20))
	is.Equal(IsPlaying.Value(), int64(0))

	is.Equal(len(pub.reports), 2)
	is.Equal(pub.reports[0].Episodes, 10)
	is.Equal(pub.reports[1].Total, 20)
	is.Equal(pub.reports[1].RunID, tr.RunID)

	// The last checkpoint came after the last game, so it matches the
	// network exactly.
	saved, err := ntuple.LoadFile(opts.ModelPath)
	is.NoErr(err)
	var b board.Board
	b = b.With(board.CellAt(0, 0), 1).With(board.CellAt(0, 1), 1)
	is.Equal(saved.Evaluate(b), net.Evaluate(b))

	fromLog, err := AnalyzeLogFile(opts.GameLog)
	is.NoErr(err)
	is.Equal(fromLog.Count(), 20)
	assert.InDelta(t, games.Score.Mean(), fromLog.Score.Mean(), 1e-9)

	sum, err := store.Summary(context.Background(), tr.RunID)
	is.NoErr(err)
	is.Equal(sum.Games, 20)
	is.Equal(sum.BestScore, int(games.Score.Max()))
}

func TestTrainerReproducible(t *testing.T) {
	is := is.New(t)
	seeds := GenerateSeeds(12)
	net := smallNetwork(t)
	opts := Options{Episodes: 12, Threads: 3, Seeds: seeds}

	run := func() []float64 {
		g, err := NewTrainer(net, player.NewGreedy(net), opts).Run(context.Background())
		is.NoErr(err)
		scores := g.Scores()
		slices.Sort(scores)
		return scores
	}
	is.Equal(run(), run())
}

func TestTrainerStops(t *testing.T) {
	is := is.New(t)
	net := smallNetwork(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := NewTrainer(net, player.NewGreedy(net), Options{Episodes: 1000, Threads: 2}).Run(ctx)
	is.NoErr(err)
	is.True(g.Count() < 1000)
}

func TestTrainerAlreadyPlaying(t *testing.T) {
	is := is.New(t)
	net := smallNetwork(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := NewTrainer(net, player.NewGreedy(net), Options{Episodes: 1 << 20, Threads: 2}).Run(ctx)
		first <- err
	}()
	for IsPlaying.Value() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := NewTrainer(net, player.NewGreedy(net), Options{Episodes: 1}).Run(context.Background())
	is.True(errors.Is(err, ErrAlreadyPlaying))

	cancel()
	is.NoErr(<-first)

	// Free again once the first run has returned.
	g, err := NewTrainer(net, player.NewGreedy(net), Options{Episodes: 1}).Run(context.Background())
	is.NoErr(err)
	is.Equal(g.Count(), 1)
}

func TestEpsilonSchedule(t *testing.T) {
	is := is.New(t)
	net := smallNetwork(t)
	tr := NewTrainer(net, player.NewGreedy(net), Options{Epsilon: 0.01, EpsilonMin: 0.005, EpsilonDecay: 0.5})
	is.Equal(tr.EpsilonFor(0), 0.01)
	is.Equal(tr.EpsilonFor(1), 0.005)
	is.Equal(tr.EpsilonFor(50), 0.005)

	tr = NewTrainer(net, player.NewGreedy(net), Options{})
	is.Equal(tr.EpsilonFor(0), 0.0)
}

func TestOptionsFromConfig(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigThreads, 0)
	cfg.Set(config.ConfigEpisodes, 50)
	opts := OptionsFromConfig(cfg)
	is.Equal(opts.Threads, 1)
	is.Equal(opts.Episodes, 50)
	is.Equal(opts.Learn, true)
	is.Equal(opts.LearningRate, 0.1)
	is.Equal(opts.Layout, "reference")
}

func TestSeeds(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "seeds.txt")

	seeds, err := LoadOrCreateSeeds(path, 5)
	is.NoErr(err)
	is.Equal(len(seeds), 5)
	is.True(seeds[0] != seeds[1])

	again, err := LoadOrCreateSeeds(path, 100)
	is.NoErr(err)
	is.Equal(again, seeds)

	is.NoErr(os.WriteFile(path, []byte("# comment\n\nnot-base64!\n"), 0o644))
	_, err = LoadSeeds(path)
	is.True(err != nil)
}

func TestAnalyzeLogAndReport(t *testing.T) {
	is := is.New(t)
	log := CSVHeader +
		GameResult{Game: 0, Score: 1000, MaxTile: 128, Moves: 100}.CSVLine(0) +
		GameResult{Game: 1, Score: 3000, MaxTile: 256, Moves: 200}.CSVLine(1.5) +
		GameResult{Game: 2, Score: 2000, MaxTile: 256, Moves: 150}.CSVLine(0) +
		GameResult{Game: 3, Score: 9000, MaxTile: 512, Moves: 400}.CSVLine(0)
	g, err := AnalyzeLog(strings.NewReader(log))
	is.NoErr(err)
	is.Equal(g.Count(), 4)
	is.Equal(g.Score.Mean(), 3750.0)

	_, err = AnalyzeLog(strings.NewReader("0,seed,abc,2,3\n"))
	is.True(err != nil)

	var buf bytes.Buffer
	is.NoErr(WriteReport(&buf, g))
	out := buf.String()
	is.True(strings.Contains(out, "Games played: 4"))
	is.True(strings.Contains(out, "Best score: 9,000"))
	is.True(strings.Contains(out, "75.00%")) // reached 256
}
