package cmd

import (
	"fmt"
	"os"

	"curafeed/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "curafeed",
		Usage: "A personal feed of recent posts from the profiles you follow",
		Description: `Curafeed keeps a list of followed profiles, fetches their most recent
		posts from the provider and assembles them into a single feed, newest first.

		The assembled feed and the follow list are cached on disk, either as a
		JSON file or in an SQLite database, and can be read back without
		contacting the provider.

		Flags can generally be set via environment variables, e.g.:

		--cache => CURAFEED_CACHE=feed.json
		--port => CURAFEED_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "curafeed.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"CURAFEED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "cache",
				Usage:   "Path to the feed cache",
				EnvVars: []string{"CURAFEED_CACHE"},
			},
			&cli.StringFlag{
				Name:    "cache-backend",
				Usage:   fmt.Sprintf("Cache backend, %q or %q", config.BackendFile, config.BackendSQLite),
				EnvVars: []string{"CURAFEED_CACHE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"CURAFEED_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "provider-host",
				Usage:   "Host of the provider API",
				EnvVars: []string{"CURAFEED_PROVIDER_HOST"},
			},
			&cli.StringFlag{
				Name:    "path-marker",
				Usage:   "Path segment preceding the profile id in profile URLs",
				EnvVars: []string{"CURAFEED_PATH_MARKER"},
			},
			&cli.StringFlag{
				Name:    "handle",
				Usage:   "Handle to authenticate with. The password is read from CURAFEED_PASSWORD or prompted for",
				EnvVars: []string{"CURAFEED_HANDLE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// Keep stdout for command output
			log.SetOutput(os.Stderr)

			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			followCmd(),
			unfollowCmd(),
			followingCmd(),
			refreshCmd(),
			feedCmd(),
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.WithField("error", err).Fatal("Command failed")
	}
}

// loadConfig reads the configuration file and applies the global flags on top
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.String("config"), !ctx.IsSet("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("cache") {
		cfg.CachePath = ctx.String("cache")
	}
	if ctx.IsSet("cache-backend") {
		cfg.CacheBackend = ctx.String("cache-backend")
	}
	if ctx.IsSet("provider-host") {
		cfg.Provider.Host = ctx.String("provider-host")
	}
	if ctx.IsSet("path-marker") {
		cfg.Provider.PathMarker = ctx.String("path-marker")
	}
	if ctx.IsSet("handle") {
		cfg.Provider.Handle = ctx.String("handle")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sqlitePath returns the cache path, refusing file caches
func sqlitePath(ctx *cli.Context) (string, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.CacheBackend != config.BackendSQLite {
		return "", fmt.Errorf("migrations only apply to the %q cache backend, got %q", config.BackendSQLite, cfg.CacheBackend)
	}
	return cfg.CachePath, nil
}
