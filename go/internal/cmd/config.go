package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
	"github.com/mcdev12/musiguessr/go/internal/config"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/mcdev12/musiguessr/go/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the dotenv files, the YAML file and the environment, then
// configures the global logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

const userAgent = "musiguessr"

// newAPIClient builds a backend client. An empty token sends no
// Authorization header.
func newAPIClient(cfg config.APIConfig, token string) *musiguessr_client.MusiguessrClient {
	client := musiguessr_client.NewMusiguessrClient(cfg.BaseURL)
	client.SetHeader("User-Agent", userAgent)
	client.SetTimeout(cfg.Timeout)
	client.SetRateLimit(cfg.RateLimitRPS, cfg.RateBurst)
	if token != "" {
		client.SetToken(token)
	}
	return client
}

// setupPublisher connects to JetStream when enabled. The returned func
// closes the connection.
func setupPublisher(ctx context.Context, cfg config.NATSConfig, m *metrics.PrometheusMetrics) (events.Publisher, func(), error) {
	if !cfg.Enabled {
		return events.NoOpPublisher{}, func() {}, nil
	}

	jsConfig := events.DefaultJetStreamConfig()
	jsConfig.URL = cfg.URL
	jsConfig.StreamName = cfg.Stream
	jsConfig.SubjectPrefix = cfg.SubjectPrefix

	publisher, err := events.NewJetStreamPublisher(ctx, jsConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up event publisher: %w", err)
	}
	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.Stream).
		Msg("publishing game events to JetStream")

	closeFn := func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event publisher")
		}
	}
	return metrics.NewMetricPublisher(publisher, m), closeFn, nil
}
