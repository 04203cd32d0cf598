package feeds_test

import (
	"context"
	"testing"
	"time"

	"curafeed/feeds"
	"curafeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRecentNormalizes(t *testing.T) {
	published := time.Date(2024, 4, 2, 8, 30, 0, 123_000_000, time.UTC)

	provider := newFakeProvider()
	provider.posts["alice"] = []models.RawPost{
		{ID: "p1", Time: published.UnixMilli(), Commentary: "hello", NumLikes: int64p(5), NumComments: int64p(2)},
		{Time: published.UnixMilli(), Commentary: "no id, no counters"},
		{ID: "p3", Time: published.UnixMilli(), NumLikes: int64p(-4)},
	}

	fetcher := feeds.NewFetcher(provider, time.Second, 2)
	profile := models.Profile{ID: "alice", DisplayName: "Alice"}

	posts, err := fetcher.FetchRecent(context.Background(), profile, 10)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, models.Post{
		PostID:       "p1",
		AuthorID:     "alice",
		AuthorName:   "Alice",
		PublishedAt:  published,
		Text:         "hello",
		LikeCount:    5,
		CommentCount: 2,
	}, posts[0])

	assert.NotEmpty(t, posts[1].PostID)
	assert.Zero(t, posts[1].LikeCount)
	assert.Zero(t, posts[1].CommentCount)
	assert.Equal(t, "", posts[2].Text)
	assert.Zero(t, posts[2].LikeCount, "negative counters are clamped")

	again, err := fetcher.FetchRecent(context.Background(), profile, 10)
	require.NoError(t, err)
	assert.Equal(t, posts[1].PostID, again[1].PostID, "fallback id is stable across fetches")
}

func TestFetchRecentFallbackIDsDiffer(t *testing.T) {
	provider := newFakeProvider()
	provider.posts["alice"] = []models.RawPost{
		{Time: 1000, Commentary: "same"},
		{Time: 1001, Commentary: "same"},
		{Time: 1000, Commentary: "other"},
	}
	fetcher := feeds.NewFetcher(provider, time.Second, 1)

	posts, err := fetcher.FetchRecent(context.Background(), models.Profile{ID: "alice"}, 10)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, p := range posts {
		ids[p.PostID] = true
	}
	assert.Len(t, ids, 3)
}

func TestFetchRecentLimit(t *testing.T) {
	provider := newFakeProvider()
	for i := 0; i < 5; i++ {
		provider.posts["alice"] = append(provider.posts["alice"], models.RawPost{Time: int64(i)})
	}
	fetcher := feeds.NewFetcher(provider, time.Second, 1)

	posts, err := fetcher.FetchRecent(context.Background(), models.Profile{ID: "alice"}, 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, time.UnixMilli(4).UTC(), posts[0].PublishedAt)

	_, err = fetcher.FetchRecent(context.Background(), models.Profile{ID: "alice"}, 0)
	assert.ErrorIs(t, err, feeds.ErrInvalidArgument)
}

func TestFetchAllContainsFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.posts["a"] = []models.RawPost{{ID: "a1", Time: 1}}
	provider.posts["c"] = []models.RawPost{{ID: "c1", Time: 2}, {ID: "c2", Time: 3}}
	provider.failPosts["b"] = true

	profiles := []models.Profile{
		{ID: "a", DisplayName: "A"},
		{ID: "b", DisplayName: "B"},
		{ID: "c", DisplayName: "C"},
	}

	fetcher := feeds.NewFetcher(provider, time.Second, 3)
	batches, failures := fetcher.FetchAll(context.Background(), profiles, 10)

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, profiles[i].ID, b.Profile.ID, "batches keep follow list order")
	}
	assert.Len(t, batches[0].Posts, 1)
	assert.Empty(t, batches[1].Posts)
	assert.NotNil(t, batches[1].Posts)
	assert.Len(t, batches[2].Posts, 2)

	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].ProfileID)
	assert.Equal(t, "B", failures[0].ProfileName)
	assert.ErrorIs(t, failures[0].Err, feeds.ErrProvider)
	assert.ErrorIs(t, failures[0].Err, errUpstream)
	assert.NotEmpty(t, failures[0].Message)
}

func TestFetchAllTimeoutIsAProfileFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.started = make(chan string, 1)
	provider.release = make(chan struct{})

	fetcher := feeds.NewFetcher(provider, 20*time.Millisecond, 1)
	batches, failures := fetcher.FetchAll(context.Background(), []models.Profile{{ID: "slow"}}, 10)

	require.Len(t, batches, 1)
	assert.Empty(t, batches[0].Posts)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, context.DeadlineExceeded)
	assert.Equal(t, feeds.KindProvider, feeds.ErrorKind(failures[0].Err))
}

func TestFetchAllEmpty(t *testing.T) {
	fetcher := feeds.NewFetcher(newFakeProvider(), time.Second, 4)
	batches, failures := fetcher.FetchAll(context.Background(), nil, 10)
	assert.Empty(t, batches)
	assert.Empty(t, failures)
}

func TestFetchRecentSkipsOutOfRangeTimes(t *testing.T) {
	published := time.Date(2024, 4, 2, 8, 30, 0, 0, time.UTC)

	provider := newFakeProvider()
	provider.posts["alice"] = []models.RawPost{
		{ID: "ok", Time: published.UnixMilli()},
		{ID: "micros", Time: published.UnixMicro()},
		{ID: "before-epoch", Time: -1},
	}
	fetcher := feeds.NewFetcher(provider, time.Second, 1)

	posts, err := fetcher.FetchRecent(context.Background(), models.Profile{ID: "alice"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, postIDs(posts))
}

func TestFetchRecentLimitKeepsMostRecent(t *testing.T) {
	provider := newFakeProvider()
	provider.posts["alice"] = []models.RawPost{
		{ID: "oldest", Time: 1000},
		{ID: "newest", Time: 5000},
		{ID: "middle", Time: 3000},
		{ID: "newer", Time: 4000},
	}
	fetcher := feeds.NewFetcher(provider, time.Second, 1)

	posts, err := fetcher.FetchRecent(context.Background(), models.Profile{ID: "alice"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "newer"}, postIDs(posts))
	assert.Equal(t, "oldest", provider.posts["alice"][0].ID, "provider data is not reordered")
}

func TestValidPostTime(t *testing.T) {
	tests := []struct {
		name  string
		t     time.Time
		valid bool
	}{
		{name: "epoch", t: feeds.MinPostTime, valid: true},
		{name: "recent", t: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), valid: true},
		{name: "upper bound", t: feeds.MaxPostTime, valid: true},
		{name: "zero", t: time.Time{}},
		{name: "past upper bound", t: feeds.MaxPostTime.Add(time.Nanosecond)},
		{name: "year 58759", t: time.UnixMilli(time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC).UnixMicro())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, feeds.ValidPostTime(tt.t))
		})
	}
}
