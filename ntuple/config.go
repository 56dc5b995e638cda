package ntuple

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/config"
)

var ErrNoModel = errors.New("no model file configured")

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DenseMaxArity:  cfg.GetInt(config.ConfigDenseMaxArity),
		InitWeight:     cfg.GetFloat64(config.ConfigInitWeight),
		MemoryFraction: cfg.GetFloat64(config.ConfigMemoryFraction),
	}
}

// LayoutFromConfig resolves the configured tuple layout: the layout file
// when one is set, otherwise a built-in layout by name.
func LayoutFromConfig(cfg *config.Config) (string, TupleSet, error) {
	if path := cfg.GetString(config.ConfigLayoutFile); path != "" {
		return LoadLayoutFile(path)
	}
	name := cfg.GetString(config.ConfigLayout)
	ts, err := Layout(name)
	if err != nil {
		return "", nil, err
	}
	return name, ts, nil
}

// NewFromConfig builds the configured network. If the model path names an
// existing weight file its weights are loaded, and the file must match the
// configured layout; a missing file means a fresh network.
func NewFromConfig(cfg *config.Config) (*Network, error) {
	name, ts, err := LayoutFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	n, err := NewNetwork(ts, OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	path := cfg.GetString(config.ConfigModelPath)
	if path == "" {
		log.Info().Str("layout", name).Msg("fresh-network")
		return n, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("layout", name).Str("path", path).Msg("no-model-file-starting-fresh")
		return n, nil
	}
	if err := n.LoadWeightsFile(path); err != nil {
		return nil, err
	}
	return n, nil
}

// LoadFromConfig builds the configured network from an existing weight
// file. Unlike NewFromConfig it never starts fresh: an empty model path is
// ErrNoModel and a missing file is an error wrapping fs.ErrNotExist.
func LoadFromConfig(cfg *config.Config) (*Network, error) {
	path := cfg.GetString(config.ConfigModelPath)
	if path == "" {
		return nil, ErrNoModel
	}
	_, ts, err := LayoutFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := OptionsFromConfig(cfg)
	// The file supplies every table.
	opts.DenseMaxArity = 0
	n, err := NewNetwork(ts, opts)
	if err != nil {
		return nil, err
	}
	if err := n.LoadWeightsFile(path); err != nil {
		return nil, err
	}
	return n, nil
}
