package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/musiguessr/go/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "musiguessr",
		Usage: "guess the track from a short preview",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   config.DefaultPath,
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"MUSIGUESSR_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Value: cli.NewStringSlice(".env"),
				Usage: "dotenv files loaded before the environment is read",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newPlayCommand(),
			newTokenCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("musiguessr failed")
		os.Exit(1)
	}
}
