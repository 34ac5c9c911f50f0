package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/musiguessr/go/internal/auth"
	"github.com/mcdev12/musiguessr/go/internal/game/audio"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/metrics"
	"github.com/mcdev12/musiguessr/go/internal/terminal"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func newPlayCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "play a game in the terminal",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "playlist",
				Usage: "create the game from this playlist",
			},
			&cli.Int64Flag{
				Name:  "session",
				Usage: "resume an existing game session, such as a tournament match",
			},
			&cli.BoolFlag{
				Name:  "mute",
				Usage: "do not run the audio player",
			},
		},
		Action: runPlay,
	}
}

func runPlay(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	client := newAPIClient(cfg.API, "")
	store := auth.NewTokenStore(cfg.Auth.TokenFile)
	tok, err := store.Apply(client, time.Now())
	switch {
	case errors.Is(err, auth.ErrNoToken):
		log.Debug().Msg("no stored token, playing without authentication")
	case err != nil:
		return fmt.Errorf("%w (run: musiguessr token set)", err)
	default:
		log.Debug().Str("username", tok.Username).Msg("using stored token")
	}

	start, err := startRequest(c)
	if err != nil {
		return err
	}

	m := metrics.NewPrometheusMetrics()
	publisher, closePublisher, err := setupPublisher(c.Context, cfg.NATS, m)
	if err != nil {
		return err
	}
	defer closePublisher()

	opts := terminal.Options{
		API:           client,
		Index:         search.NewIndex(client),
		RoundSeconds:  cfg.Game.RoundSeconds,
		SearchLimit:   cfg.Game.SearchLimit,
		FinishTimeout: cfg.Game.FinishTimeout,
		Publisher:     publisher,
		Metrics:       m,
		Start:         start,
		In:            os.Stdin,
		Out:           os.Stdout,
	}
	if !c.Bool("mute") {
		output, err := audio.NewExecOutput(cfg.Game.PlayerCommand)
		if err != nil {
			return fmt.Errorf("invalid game.player_command: %w", err)
		}
		opts.Output = output
	}

	err = terminal.New(opts).Run(c.Context)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startRequest(c *cli.Context) (session.StartRequest, error) {
	var req session.StartRequest
	if c.IsSet("session") {
		id := c.Int64("session")
		if id <= 0 {
			return req, errors.New("--session must be positive")
		}
		req.SessionID = &id
	}
	if c.IsSet("playlist") {
		id := c.Int64("playlist")
		if id <= 0 {
			return req, errors.New("--playlist must be positive")
		}
		req.PlaylistID = &id
	}
	return req, nil
}
