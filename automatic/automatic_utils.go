package automatic

// Training and evaluation runs: many games, possibly in parallel, feeding
// the TD learner, the game log, the result store and progress reports.

import (
	"context"
	"errors"
	"expvar"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/jgc10/2048-ai/config"
	"github.com/jgc10/2048-ai/ntuple"
	"github.com/jgc10/2048-ai/player"
	"github.com/jgc10/2048-ai/progress"
	"github.com/jgc10/2048-ai/results"
	"github.com/jgc10/2048-ai/stats"
	"github.com/jgc10/2048-ai/tdlearn"
)

var (
	GamesPlayed *expvar.Int
	IsPlaying   *expvar.Int
)

func init() {
	GamesPlayed = expvar.NewInt("gamesPlayed")
	IsPlaying = expvar.NewInt("isPlaying")
}

var ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

// playing is held for the whole of a Run.
var playing sync.Mutex

type Options struct {
	Episodes        int
	Threads         int
	Learn           bool
	LearningRate    float64
	CheckpointEvery int
	ReportEvery     int
	Epsilon         float64
	EpsilonMin      float64
	EpsilonDecay    float64
	ModelPath       string
	GameLog         string
	Layout          string
	// Seeds[i] seeds game i. Games past the end get fresh random seeds.
	Seeds [][32]byte
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Episodes:        cfg.GetInt(config.ConfigEpisodes),
		Threads:         max(1, cfg.GetInt(config.ConfigThreads)),
		Learn:           cfg.GetBool(config.ConfigLearn),
		LearningRate:    cfg.GetFloat64(config.ConfigLearningRate),
		CheckpointEvery: cfg.GetInt(config.ConfigCheckpointEvery),
		ReportEvery:     cfg.GetInt(config.ConfigReportEvery),
		Epsilon:         cfg.GetFloat64(config.ConfigEpsilon),
		EpsilonMin:      cfg.GetFloat64(config.ConfigEpsilonMin),
		EpsilonDecay:    cfg.GetFloat64(config.ConfigEpsilonDecay),
		ModelPath:       cfg.GetString(config.ConfigModelPath),
		GameLog:         cfg.GetString(config.ConfigGameLog),
		Layout:          cfg.GetString(config.ConfigLayout),
	}
}

// Trainer runs a batch of games against one shared network.
type Trainer struct {
	RunID string

	net       *ntuple.Network
	player    *player.Greedy
	learner   *tdlearn.Learner
	opts      Options
	store     *results.Store
	publisher progress.Publisher
}

func NewTrainer(net *ntuple.Network, p *player.Greedy, opts Options) *Trainer {
	return &Trainer{
		RunID:     uuid.NewString(),
		net:       net,
		player:    p,
		learner:   tdlearn.NewLearner(net, opts.LearningRate),
		opts:      opts,
		publisher: progress.LogPublisher{},
	}
}

// SetStore makes the trainer record every game in s.
func (t *Trainer) SetStore(s *results.Store) { t.store = s }

func (t *Trainer) SetPublisher(p progress.Publisher) { t.publisher = p }

// EpsilonFor is the exploration rate of game i: the initial rate decayed
// once per earlier game, floored at the minimum.
func (t *Trainer) EpsilonFor(i int) float64 {
	if t.opts.Epsilon <= 0 {
		return 0
	}
	return max(t.opts.EpsilonMin, t.opts.Epsilon*math.Pow(t.opts.EpsilonDecay, float64(i)))
}

func (t *Trainer) seedFor(i int) [32]byte {
	if i < len(t.opts.Seeds) {
		return t.opts.Seeds[i]
	}
	return frand.Entropy256()
}

type job struct {
	game    int
	seed    [32]byte
	epsilon float64
}

type finished struct {
	result  GameResult
	td      tdlearn.Summary
	elapsed time.Duration
}

// Run plays the configured number of games on Threads goroutines and
// returns their statistics. Cancelling ctx stops queueing new games; games
// in flight finish and are recorded, and a final checkpoint is written.
func (t *Trainer) Run(ctx context.Context) (*stats.Games, error) {
	if !playing.TryLock() {
		return nil, ErrAlreadyPlaying
	}
	defer playing.Unlock()
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		ctx = log.Logger.WithContext(ctx)
	}
	logger := zerolog.Ctx(ctx).With().Str("run", t.RunID).Logger()
	// Bookkeeping must outlive a stop signal.
	bg := context.WithoutCancel(ctx)

	var logfile *os.File
	if t.opts.GameLog != "" {
		var err error
		logfile, err = os.Create(t.opts.GameLog)
		if err != nil {
			return nil, err
		}
		defer logfile.Close()
		if _, err := logfile.WriteString(CSVHeader); err != nil {
			return nil, err
		}
	}
	if t.store != nil {
		err := t.store.StartRun(bg, results.Run{
			ID: t.RunID, Started: time.Now(), Layout: t.opts.Layout, Learning: t.opts.Learn,
		})
		if err != nil {
			return nil, err
		}
	}

	threads := max(1, t.opts.Threads)
	logger.Info().Int("games", t.opts.Episodes).Int("threads", threads).
		Bool("learn", t.opts.Learn).Msg("starting-games")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := make(chan job)
	done := make(chan finished, threads)
	wg, wctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		defer close(jobs)
		for i := range t.opts.Episodes {
			j := job{game: i, seed: t.seedFor(i), epsilon: t.EpsilonFor(i)}
			select {
			case jobs <- j:
			case <-wctx.Done():
				logger.Info().Int("queued", i).Msg("got-stop-signal-exiting-soon")
				return nil
			}
			if (i+1)%1000 == 0 {
				logger.Debug().Int("queued", i+1).Msg("queued-jobs")
			}
		}
		return nil
	})
	for range threads {
		wg.Go(func() error {
			IsPlaying.Add(1)
			defer IsPlaying.Add(-1)
			r := NewGameRunner(t.player)
			for j := range jobs {
				start := time.Now()
				res, ep, err := r.PlayGame(j.game, j.seed, j.epsilon)
				if err != nil {
					return err
				}
				var td tdlearn.Summary
				if t.opts.Learn {
					td = t.learner.Learn(ep)
				}
				GamesPlayed.Add(1)
				done <- finished{result: res, td: td, elapsed: time.Since(start)}
			}
			return nil
		})
	}

	var werr error
	go func() {
		werr = wg.Wait()
		close(done)
	}()

	c := &collector{
		t:       t,
		logger:  logger,
		logfile: logfile,
		total:   stats.NewGames(),
		window:  stats.NewGames(),
		start:   time.Now(),
	}
	var cerr error
	for f := range done {
		if cerr != nil {
			continue
		}
		if err := c.add(bg, f); err != nil {
			cerr = err
			cancel()
		}
	}
	if cerr == nil {
		cerr = c.finish(bg)
	}
	logger.Info().Int("games", c.total.Count()).Float64("mean-score", c.total.Score.Mean()).
		Dur("elapsed", time.Since(c.start)).Msg("all-games-finished")
	return c.total, errors.Join(werr, cerr)
}

// collector consumes finished games on a single goroutine.
type collector struct {
	t       *Trainer
	logger  zerolog.Logger
	logfile *os.File
	total   *stats.Games
	window  *stats.Games
	start   time.Time
	saved   int
}

func (c *collector) add(ctx context.Context, f finished) error {
	res := f.result
	c.total.Add(res.Score, res.MaxTile, res.Moves)
	c.window.Add(res.Score, res.MaxTile, res.Moves)
	n := c.total.Count()

	if c.logfile != nil {
		if _, err := c.logfile.WriteString(res.CSVLine(f.td.MeanAbsError)); err != nil {
			return err
		}
	}
	if c.t.store != nil {
		err := c.t.store.Record(ctx, c.t.RunID, results.Game{
			Game: res.Game, Score: res.Score, MaxTile: res.MaxTile, Moves: res.Moves,
			Epsilon: res.Epsilon, TDError: f.td.MeanAbsError, Duration: f.elapsed,
		})
		if err != nil {
			return err
		}
	}
	if every := c.t.opts.CheckpointEvery; every > 0 && n%every == 0 {
		if err := c.checkpoint(); err != nil {
			return err
		}
	}
	if every := c.t.opts.ReportEvery; every > 0 && n%every == 0 {
		if err := c.report(ctx, res.Epsilon); err != nil {
			return err
		}
	}
	return nil
}

func (c *collector) checkpoint() error {
	if !c.t.opts.Learn || c.t.opts.ModelPath == "" || c.saved == c.total.Count() {
		return nil
	}
	if err := c.t.net.SaveFile(c.t.opts.ModelPath); err != nil {
		return err
	}
	c.saved = c.total.Count()
	c.logger.Info().Int("games", c.saved).Msg("checkpoint")
	return nil
}

func (c *collector) report(ctx context.Context, epsilon float64) error {
	err := c.t.publisher.Publish(c.logger.WithContext(ctx), progress.Report{
		RunID:    c.t.RunID,
		Episodes: c.window.Count(),
		Total:    c.total.Count(),
		Elapsed:  time.Since(c.start),
		Epsilon:  epsilon,
		Window:   c.window.Summarize(),
	})
	c.window = stats.NewGames()
	return err
}

func (c *collector) finish(ctx context.Context) error {
	if c.window.Count() > 0 && c.t.opts.ReportEvery > 0 {
		if err := c.report(ctx, c.t.EpsilonFor(c.total.Count()-1)); err != nil {
			return err
		}
	}
	return c.checkpoint()
}
