package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/musiguessr/go/internal/auth"
	"github.com/urfave/cli/v2"
)

func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "manage the stored backend token",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "store a token returned by the backend login",
				ArgsUsage: "<token>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "name shown by token show"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected exactly one token argument")
					}
					store, err := tokenStore(c)
					if err != nil {
						return err
					}
					tok := auth.Token{Token: c.Args().First(), Username: c.String("username")}
					if tok.Expired(time.Now()) {
						return auth.ErrUnauthorized
					}
					if err := store.Save(tok); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "token saved to %s\n", store.Path())
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "forget the stored token",
				Action: func(c *cli.Context) error {
					store, err := tokenStore(c)
					if err != nil {
						return err
					}
					return store.Clear()
				},
			},
			{
				Name:  "show",
				Usage: "describe the stored token",
				Action: func(c *cli.Context) error {
					store, err := tokenStore(c)
					if err != nil {
						return err
					}
					tok, err := store.Load()
					if errors.Is(err, auth.ErrNoToken) {
						fmt.Fprintln(c.App.Writer, "no token stored")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, describeToken(tok, time.Now()))
					return nil
				},
			},
		},
	}
}

func tokenStore(c *cli.Context) (*auth.TokenStore, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenStore(cfg.Auth.TokenFile), nil
}

func describeToken(tok auth.Token, now time.Time) string {
	who := tok.Username
	if who == "" {
		who = "unknown user"
	}
	exp, ok := tok.ExpiresAt()
	switch {
	case !ok:
		return fmt.Sprintf("%s, no expiry", who)
	case tok.Expired(now):
		return fmt.Sprintf("%s, expired %s", who, exp.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%s, expires %s", who, exp.UTC().Format(time.RFC3339))
	}
}
