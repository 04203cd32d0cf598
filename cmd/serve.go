package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curafeed/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed over HTTP",
		Description: `Starts an HTTP API for managing the follow list, refreshing and reading
the feed. Prometheus metrics are exposed on /metrics.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Host to listen on",
				EnvVars: []string{"CURAFEED_HOST"},
				Value:   "localhost",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"CURAFEED_PORT"},
				Value:   3000,
			},
		},
		Action: func(ctx *cli.Context) error {
			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()

			s.follow(ctx.Context, s.config.References())

			app := server.Server(&server.ServerConfig{
				Engine:   s.engine,
				DaysBack: s.config.DaysBack,
			})

			// Graceful shutdown
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			go func() {
				<-sig
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithField("error", err).Error("Error shutting down server")
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
			log.WithField("address", addr).Info("Starting server")
			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			log.Info("Done!")
			return nil
		},
	}
}
