package feeds

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"curafeed/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Publish times outside [MinPostTime, MaxPostTime] cannot be stored by every
// cache backend. Posts carrying them are dropped when fetched.
var (
	MinPostTime = time.Unix(0, 0).UTC()
	MaxPostTime = time.Unix(0, math.MaxInt64).UTC()
)

// ValidPostTime reports whether t lies within [MinPostTime, MaxPostTime]
func ValidPostTime(t time.Time) bool {
	return !t.Before(MinPostTime) && !t.After(MaxPostTime)
}

// Fetcher pulls recent posts for followed profiles from the provider
type Fetcher struct {
	provider    Provider
	timeout     time.Duration
	concurrency int
}

func NewFetcher(provider Provider, timeout time.Duration, concurrency int) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{provider: provider, timeout: timeout, concurrency: concurrency}
}

// FetchRecent returns up to limit of the most recent posts by the profile,
// normalized into the canonical post shape.
func (f *Fetcher) FetchRecent(ctx context.Context, profile models.Profile, limit int) ([]models.Post, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: post limit must be at least 1, got %d", ErrInvalidArgument, limit)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	raw, err := f.provider.GetRecentPosts(ctx, profile.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching posts for %s: %w", ErrProvider, profile.ID, err)
	}

	// Some providers ignore the limit, keep the most recent ones
	if len(raw) > limit {
		raw = slices.Clone(raw)
		slices.SortStableFunc(raw, func(a, b models.RawPost) int {
			return cmp.Compare(b.Time, a.Time)
		})
		raw = raw[:limit]
	}

	posts := make([]models.Post, 0, len(raw))
	for _, rp := range raw {
		post, err := normalizePost(profile, rp)
		if err != nil {
			log.WithFields(log.Fields{
				"profile": profile.ID,
				"post":    rp.ID,
				"error":   err,
			}).Warn("Skipping post")
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// FetchAll fetches every profile in parallel and waits for all of them.
// A profile that fails yields an empty batch and a FetchFailure; the other
// profiles are unaffected. Batches keep the order of profiles.
func (f *Fetcher) FetchAll(ctx context.Context, profiles []models.Profile, limit int) ([]Batch, []models.FetchFailure) {
	batches := make([]Batch, len(profiles))
	errs := make([]error, len(profiles))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, profile := range profiles {
		g.Go(func() error {
			posts, err := f.FetchRecent(ctx, profile, limit)
			if err != nil {
				errs[i] = err
				posts = []models.Post{}
			}
			batches[i] = Batch{Profile: profile, Posts: posts}
			return nil
		})
	}
	_ = g.Wait()

	var failures []models.FetchFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		profileFetchFailures.Inc()
		log.WithFields(log.Fields{
			"profile": profiles[i].ID,
			"name":    profiles[i].DisplayName,
			"error":   err,
		}).Warn("Could not fetch posts for profile")

		failures = append(failures, models.FetchFailure{
			ProfileID:   profiles[i].ID,
			ProfileName: profiles[i].DisplayName,
			Err:         err,
			Message:     err.Error(),
		})
	}

	return batches, failures
}

func normalizePost(profile models.Profile, rp models.RawPost) (models.Post, error) {
	published := time.UnixMilli(rp.Time).UTC()
	if !ValidPostTime(published) {
		return models.Post{}, fmt.Errorf("publish time %d ms is out of range", rp.Time)
	}

	post := models.Post{
		PostID:       rp.ID,
		AuthorID:     profile.ID,
		AuthorName:   profile.DisplayName,
		PublishedAt:  published,
		Text:         rp.Commentary,
		LikeCount:    counter(rp.NumLikes),
		CommentCount: counter(rp.NumComments),
	}
	if post.PostID == "" {
		post.PostID = fallbackPostID(profile.ID, rp.Time, rp.Commentary)
	}
	return post, nil
}

func counter(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// fallbackPostID derives a stable id from the author, timestamp and text
func fallbackPostID(authorID string, millis int64, text string) string {
	h := sha256.New()
	h.Write([]byte(authorID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(millis, 10)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
