package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/api"
	"github.com/samcharles93/mchat/internal/session"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		sessionIdle time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the browser chat page and its HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.DurationFlag{
				Name:        "session-idle",
				Usage:       "drop sessions idle for this long",
				Value:       time.Hour,
				Destination: &sessionIdle,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(c, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			applyServeConfig(c, a.cfg, &addr, &sessionIdle)
			log := a.log

			sessions := session.NewStore(opts.greeting)
			go sessions.RunSweeper(ctx, time.Minute, sessionIdle, log)

			server := api.NewServer(api.Config{
				Sessions: sessions,
				Models:   a.cache,
				Registry: a.registry,
				Defaults: a.defaults,
				Log:      log,
			})
			go a.watchRegistry(ctx, server.SetRegistry)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "models", a.registry.Len())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
