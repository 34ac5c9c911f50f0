package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/musiguessr/go/internal/config"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/gateway"
	"github.com/mcdev12/musiguessr/go/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the websocket gateway for the browser game",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides gateway.addr",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.Gateway.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	m := metrics.NewPrometheusMetrics()
	publisher, closePublisher, err := setupPublisher(c.Context, cfg.NATS, m)
	if err != nil {
		return err
	}
	defer closePublisher()

	// The catalog is shared by every connection, so it is fetched with the
	// configured service token rather than a player's.
	index := search.NewIndex(newAPIClient(cfg.API, cfg.API.CatalogToken))
	newAPI := func(token string) session.GameAPI {
		return newAPIClient(cfg.API, token)
	}

	svc := gateway.NewService(gatewayConfig(cfg), newAPI, index, publisher, m, m.Handler())
	srv := svc.NewHTTPServer(addr)

	g, gctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("play gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return svc.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	g.Go(func() error {
		if err := index.Load(gctx); err != nil {
			log.Warn().Err(err).Msg("failed to preload catalog, retrying on first search")
		}
		return nil
	})
	return g.Wait()
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	gw := gateway.DefaultConfig()
	gw.AllowedOrigins = cfg.Gateway.AllowedOrigins
	gw.RoundSeconds = cfg.Game.RoundSeconds
	gw.SearchLimit = cfg.Game.SearchLimit
	gw.FinishTimeout = cfg.Game.FinishTimeout

	conn := &gw.ConnectionConfig
	conn.ReadBufferSize = cfg.Gateway.ReadBufferSize
	conn.WriteBufferSize = cfg.Gateway.WriteBufferSize
	conn.WriteTimeout = cfg.Gateway.WriteTimeout
	conn.ReadTimeout = cfg.Gateway.PongTimeout
	conn.PingInterval = cfg.Gateway.PingInterval
	conn.CheckOrigin = gateway.OriginChecker(cfg.Gateway.AllowedOrigins)
	return gw
}
