package cmd

import (
	"context"
	"fmt"
	"os"

	"curafeed/bluesky"
	"curafeed/config"
	"curafeed/db"
	"curafeed/feeds"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// session bundles an engine with the resources backing it
type session struct {
	engine *feeds.Engine
	config *config.Config
	close  func() error
}

func openCache(cfg *config.Config) (feeds.Cache, func() error, error) {
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		cache, err := db.NewSQLiteCache(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache.Close, nil
	default:
		return db.NewFileCache(cfg.CachePath), func() error { return nil }, nil
	}
}

// newProvider returns an anonymous client unless a handle is configured and
// authenticate is set
func newProvider(ctx context.Context, cfg *config.Config, authenticate bool) (feeds.Provider, error) {
	if !authenticate || cfg.Provider.Handle == "" {
		return bluesky.NewPublicClient(cfg.Provider.Host), nil
	}

	password := os.Getenv("CURAFEED_PASSWORD")
	if password == "" {
		var err error
		password, err = prompt.New().Ask("Password:").Input("", input.WithEchoMode(input.EchoNone))
		if err != nil {
			return nil, err
		}
	}

	host := cfg.Provider.Host
	if host == bluesky.DefaultPublicHost {
		// The AppView does not create sessions
		host = bluesky.DefaultPDSHost
	}

	client, err := bluesky.ClientFromCredentials(ctx, host, &bluesky.Credentials{
		Identifier: cfg.Provider.Handle,
		Password:   password,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create client with provided credentials: %w", err)
	}
	return client, nil
}

// openSession loads the configuration, opens the cache and restores the
// follow list from it
func openSession(ctx *cli.Context, authenticate bool) (*session, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	provider, err := newProvider(ctx.Context, cfg, authenticate)
	if err != nil {
		return nil, err
	}

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	timeout, err := cfg.FetchTimeoutDuration()
	if err != nil {
		closeCache()
		return nil, err
	}

	engine := feeds.NewEngine(provider, cache, feeds.Options{
		PathMarker:           cfg.Provider.PathMarker,
		PostsPerProfile:      cfg.PostsPerProfile,
		FetchTimeout:         timeout,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
	})

	if err := engine.Restore(ctx.Context); err != nil {
		closeCache()
		return nil, fmt.Errorf("failed to restore follow list: %w", err)
	}

	log.WithFields(log.Fields{
		"cache":   cfg.CachePath,
		"backend": cfg.CacheBackend,
		"host":    cfg.Provider.Host,
	}).Debug("Session opened")

	return &session{engine: engine, config: cfg, close: closeCache}, nil
}

// follow adds every reference, logging the ones that fail. It returns the
// number of failed references.
func (s *session) follow(ctx context.Context, references []string) int {
	failed := 0
	for _, ref := range references {
		profile, added, err := s.engine.AddProfile(ctx, ref)
		if err != nil {
			failed++
			continue
		}
		if added {
			log.WithFields(log.Fields{
				"id":   profile.ID,
				"name": profile.DisplayName,
			}).Info("Following profile")
		}
	}
	return failed
}
