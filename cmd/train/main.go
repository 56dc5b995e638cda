package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/automatic"
	"github.com/jgc10/2048-ai/config"
)

var (
	GitVersion string
)

func setupLogging(debug bool) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
}

func main() {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	exPath := filepath.Dir(ex)

	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.AdjustRelativePaths(exPath)
	setupLogging(cfg.GetBool(config.ConfigDebug))
	log.Info().Str("version", GitVersion).Interface("settings", cfg.AllSettings()).Msg("loaded-config")

	if err := cfg.EnsureDataPath(); err != nil {
		log.Fatal().Err(err).Msg("data-path")
	}
	cfg.DefaultModelPath()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	trainer, closeFn, err := automatic.NewTrainerFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("setting-up-trainer")
	}
	defer closeFn()

	games, err := trainer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("training-failed")
		closeFn()
		os.Exit(1)
	}
	s := games.Summarize()
	log.Info().Int("games", s.Games).Float64("mean-score", s.MeanScore).
		Int("best-tile", s.BestTile).Msg("training-done")
}
