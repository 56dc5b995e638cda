package automatic

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/config"
	"github.com/jgc10/2048-ai/ntuple"
	"github.com/jgc10/2048-ai/player"
	"github.com/jgc10/2048-ai/progress"
	"github.com/jgc10/2048-ai/results"
)

// NewTrainerFromConfig wires a trainer from settings: the network, the
// player and its heuristics, seeds, the result store and the progress
// publisher. A learning run loads the model file when present and starts
// fresh otherwise; a run without learning requires the model file. The
// returned close function releases the store and publisher.
func NewTrainerFromConfig(ctx context.Context, cfg *config.Config) (*Trainer, func() error, error) {
	load := ntuple.NewFromConfig
	if !cfg.GetBool(config.ConfigLearn) {
		load = ntuple.LoadFromConfig
	}
	net, err := load(cfg)
	if err != nil {
		return nil, nil, err
	}
	var hs []player.Heuristic
	if cfg.GetBool(config.ConfigCornerBonus) {
		hs = append(hs, player.CornerBonus{})
	}
	opts := OptionsFromConfig(cfg)
	if path := cfg.GetString(config.ConfigLayoutFile); path != "" {
		opts.Layout = path
	}
	if path := cfg.GetString(config.ConfigSeedFile); path != "" {
		opts.Seeds, err = LoadOrCreateSeeds(path, opts.Episodes)
		if err != nil {
			return nil, nil, err
		}
	}
	t := NewTrainer(net, player.NewGreedy(net, hs...), opts)

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if path := cfg.GetString(config.ConfigResultsDB); path != "" {
		store, err := results.Open(path)
		if err != nil {
			return nil, nil, err
		}
		t.SetStore(store)
		closers = append(closers, store.Close)
	}
	pub, err := progress.New(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	t.SetPublisher(pub)
	closers = append(closers, pub.Close)

	log.Info().Str("run", t.RunID).Int("tuples", len(net.Tuples())).
		Int("features", net.NumFeatures()).Bool("corner-bonus", len(hs) > 0).
		Msg("trainer-ready")
	return t, closeAll, nil
}
