package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"curafeed/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPostsPerProfile      = 10
	DefaultFetchTimeout         = 15 * time.Second
	DefaultMaxConcurrentFetches = 4
)

// Options tunes an Engine. Zero values are replaced with defaults.
type Options struct {
	PathMarker           string
	PostsPerProfile      int
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	Now                  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PathMarker == "" {
		o.PathMarker = DefaultPathMarker
	}
	if o.PostsPerProfile < 1 {
		o.PostsPerProfile = DefaultPostsPerProfile
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.MaxConcurrentFetches < 1 {
		o.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine is a single feed session: the followed profiles, the provider
// used to fetch their posts and the cache holding the last assembled feed.
type Engine struct {
	follows  *FollowList
	resolver *Resolver
	fetcher  *Fetcher
	cache    Cache
	opts     Options

	// held for the whole refresh cycle, a second refresh is rejected
	refreshMu sync.Mutex
}

func NewEngine(provider Provider, cache Cache, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		follows:  NewFollowList(),
		resolver: NewResolver(provider, opts.PathMarker, opts.Now),
		fetcher:  NewFetcher(provider, opts.FetchTimeout, opts.MaxConcurrentFetches),
		cache:    cache,
		opts:     opts,
	}
}

// AddProfile resolves the reference and follows the profile. The returned
// bool is false if the profile was already followed. Resolution errors leave
// the follow list untouched.
func (e *Engine) AddProfile(ctx context.Context, reference string) (models.Profile, bool, error) {
	profile, err := e.resolver.Resolve(ctx, reference)
	if err != nil {
		log.WithFields(log.Fields{
			"reference": reference,
			"kind":      ErrorKind(err),
			"error":     err,
		}).Error("Could not add profile")
		return models.Profile{}, false, err
	}

	added := e.follows.Add(profile)
	if !added {
		log.WithFields(log.Fields{
			"id": profile.ID,
		}).Info("Profile already followed")
	}
	return profile, added, nil
}

// RemoveProfile stops following the profile with the given id
func (e *Engine) RemoveProfile(id string) bool {
	return e.follows.Remove(id)
}

// ListFollowed returns the followed profiles in the order they were added
func (e *Engine) ListFollowed() []models.Profile {
	return e.follows.List()
}

// RefreshFeed runs one refresh cycle: fetch every followed profile, keep the
// posts of the last daysBack days, assemble them and save the snapshot.
// Profiles that fail to fetch are reported in the result and do not fail the
// cycle. If saving fails the assembled result is returned alongside the error.
func (e *Engine) RefreshFeed(ctx context.Context, daysBack int) (*models.RefreshResult, error) {
	if daysBack < 1 {
		return nil, fmt.Errorf("%w: days back must be at least 1, got %d", ErrInvalidArgument, daysBack)
	}

	if !e.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer e.refreshMu.Unlock()

	start := time.Now()
	defer func() {
		refreshDuration.Observe(time.Since(start).Seconds())
	}()

	cycle := uuid.NewString()
	profiles := e.follows.List()
	logger := log.WithFields(log.Fields{
		"cycle":    cycle,
		"profiles": len(profiles),
		"daysBack": daysBack,
	})
	logger.Info("Refreshing feed")

	batches, failures := e.fetcher.FetchAll(ctx, profiles, e.opts.PostsPerProfile)

	now := e.opts.Now()
	filtered := make([]Batch, 0, len(batches))
	for _, b := range batches {
		posts, err := FilterWindow(b.Posts, daysBack, now)
		if err != nil {
			refreshTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		filtered = append(filtered, Batch{Profile: b.Profile, Posts: posts})
	}

	snapshot := models.FeedSnapshot{
		LastUpdated: now.UTC(),
		FollowList:  profiles,
		Posts:       Assemble(filtered),
	}

	// Abandoned cycles are not persisted
	if err := ctx.Err(); err != nil {
		refreshTotal.WithLabelValues("cancelled").Inc()
		logger.WithField("error", err).Warn("Refresh abandoned before saving")
		return nil, err
	}

	result := &models.RefreshResult{
		CycleID:  cycle,
		Snapshot: snapshot,
		Failures: failures,
	}
	if result.Failures == nil {
		result.Failures = []models.FetchFailure{}
	}

	if err := e.cache.Save(ctx, snapshot); err != nil {
		cacheSaveErrors.Inc()
		refreshTotal.WithLabelValues("save_failed").Inc()
		logger.WithField("error", err).Error("Could not save feed")
		return result, fmt.Errorf("saving feed: %w", err)
	}

	feedPosts.Set(float64(len(snapshot.Posts)))
	refreshTotal.WithLabelValues("ok").Inc()
	logger.WithFields(log.Fields{
		"posts":    len(snapshot.Posts),
		"failures": len(failures),
		"duration": time.Since(start),
	}).Info("Feed refreshed")

	return result, nil
}

// GetCachedFeed returns the last saved snapshot, or nil if there is none.
// An unreadable cache is reported with an error wrapping ErrCorruptCache.
func (e *Engine) GetCachedFeed(ctx context.Context) (*models.FeedSnapshot, error) {
	snapshot, err := e.cache.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptCache) {
			log.WithField("error", err).Warn("Cached feed is unreadable, ignoring it")
		}
		return nil, err
	}
	return snapshot, nil
}

// Restore follows the profiles of the cached snapshot. A missing or
// unreadable cache leaves the follow list as it is.
func (e *Engine) Restore(ctx context.Context) error {
	snapshot, err := e.GetCachedFeed(ctx)
	if errors.Is(err, ErrCorruptCache) {
		return nil
	}
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	restored := 0
	for _, p := range snapshot.FollowList {
		if e.follows.Add(p) {
			restored++
		}
	}

	log.WithFields(log.Fields{
		"profiles":    restored,
		"lastUpdated": snapshot.LastUpdated.Format(time.RFC3339),
	}).Info("Restored follow list from cache")

	return nil
}
