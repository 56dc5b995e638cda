package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/automatic"
	"github.com/jgc10/2048-ai/config"
)

// play runs evaluation games with the trained model: no learning, no
// exploration. It writes a report of the results to out.
func play(ctx context.Context, cfg *config.Config, out io.Writer) error {
	cfg.DefaultModelPath()
	cfg.Set(config.ConfigLearn, false)
	cfg.Set(config.ConfigEpsilon, 0.0)
	cfg.Set(config.ConfigCheckpointEvery, 0)

	trainer, closeFn, err := automatic.NewTrainerFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up player: %w", err)
	}
	defer closeFn()

	games, err := trainer.Run(ctx)
	if games != nil {
		if rerr := automatic.WriteReport(out, games); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func main() {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}

	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.AdjustRelativePaths(filepath.Dir(ex))

	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = log.Logger.WithContext(ctx)

	err = play(ctx, cfg, os.Stdout)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("play-failed")
	}
}
