package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ridra/internal/config"
	"ridra/internal/controllers"
	"ridra/internal/logger"
	"ridra/internal/middleware"
	"ridra/internal/realtime"
	"ridra/internal/routes"
	"ridra/internal/seed"
)

func main() {
	app := &cli.App{
		Name:  "ridra",
		Usage: "bus tracking backend",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and websocket server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen address, overrides PORT",
					},
				},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Action: func(c *cli.Context) error {
					_, err := bootstrap()
					if err == nil {
						logrus.Info("Migration complete.")
					}
					return err
				},
			},
			{
				Name:  "seed",
				Usage: "insert demo users, a route, a bus and a schedule",
				Action: func(c *cli.Context) error {
					if _, err := bootstrap(); err != nil {
						return err
					}
					_, err := seed.Run(config.GetDB(), time.Now())
					return err
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ridra exited with an error")
	}
}

// bootstrap loads settings, configures logging and connects the database.
func bootstrap() (config.Settings, error) {
	settings := config.Load()
	logger.Setup(logger.Options{
		File:   settings.LogFile,
		Level:  settings.LogLevel,
		Stdout: settings.LogStdout,
	})
	if err := config.InitDB(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

func serve(c *cli.Context) error {
	settings := config.Load()
	accessLog := logger.Setup(logger.Options{
		File:   settings.LogFile,
		Level:  settings.LogLevel,
		Stdout: settings.LogStdout,
	})
	gin.SetMode(settings.GinMode)

	if err := config.InitDB(settings); err != nil {
		return err
	}
	middleware.Configure(settings.JWTSecret, settings.JWTTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	if settings.RedisURL != "" {
		client, err := realtime.ConnectRedis(ctx, settings.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		bridge := realtime.NewRedisBridge(client, hub)
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		publisher = bridge
		logrus.Info("Socket events fan out through Redis.")
	}
	controllers.Configure(hub, publisher)

	addr := c.String("listen")
	if addr == "" {
		addr = "0.0.0.0:" + settings.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.EnableCORS(routes.SetupRouter(accessLog), settings.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
