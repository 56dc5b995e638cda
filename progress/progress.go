// Package progress publishes periodic training reports, to the log or to a
// NATS subject.
package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/config"
	"github.com/jgc10/2048-ai/stats"
)

// A Report describes the games finished since the previous report.
type Report struct {
	RunID    string        `json:"run_id"`
	Episodes int           `json:"episodes"`
	Total    int           `json:"total"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Epsilon  float64       `json:"epsilon"`
	Window   stats.Summary `json:"window"`
}

type Publisher interface {
	Publish(ctx context.Context, r Report) error
	Close() error
}

// LogPublisher writes reports to the context's logger.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, r Report) error {
	zerolog.Ctx(ctx).Info().
		Str("run", r.RunID).
		Int("episodes", r.Episodes).
		Int("total", r.Total).
		Dur("elapsed", r.Elapsed).
		Float64("epsilon", r.Epsilon).
		Float64("mean-score", r.Window.MeanScore).
		Float64("mean-max-tile", r.Window.MeanMaxTile).
		Int("best-tile", r.Window.BestTile).
		Msg("training-progress")
	return nil
}

func (LogPublisher) Close() error { return nil }

// NatsPublisher sends each report as JSON to a NATS subject, and also logs
// it.
type NatsPublisher struct {
	nc       *nats.Conn
	subject  string
	attempts uint
}

// DialNats connects to url, retrying with backoff up to attempts times.
func DialNats(ctx context.Context, url, subject string, attempts uint) (*NatsPublisher, error) {
	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(url, nats.Name("tdl2048"))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Err(err).Uint("n", n).Str("url", url).Msg("nats-connect-failed-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", url).Str("subject", subject).Msg("connected-to-nats")
	return &NatsPublisher{nc: nc, subject: subject, attempts: attempts}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, r Report) error {
	LogPublisher{}.Publish(ctx, r)
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error { return p.nc.Publish(p.subject, data) },
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.LastErrorOnly(true),
	)
}

// Close flushes pending reports and closes the connection.
func (p *NatsPublisher) Close() error {
	err := p.nc.Flush()
	p.nc.Close()
	return err
}

// New returns a NATS publisher when a NATS URL is configured, and a
// LogPublisher otherwise.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	url := cfg.GetString(config.ConfigNatsURL)
	if url == "" {
		return LogPublisher{}, nil
	}
	return DialNats(ctx, url, cfg.GetString(config.ConfigNatsSubject), 5)
}
