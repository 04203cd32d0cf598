package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curafeed/db"
	"curafeed/feeds"
	"curafeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() models.FeedSnapshot {
	updated := time.Date(2024, 7, 15, 18, 0, 0, 123456789, time.UTC)
	return models.FeedSnapshot{
		LastUpdated: updated,
		FollowList: []models.Profile{
			{ID: "did:plc:alice", DisplayName: "Alice", Headline: "Builds things", AddedAt: updated.Add(-48 * time.Hour)},
			{ID: "did:plc:bob", DisplayName: "Bob", AddedAt: updated.Add(-time.Hour)},
		},
		Posts: []models.Post{
			{PostID: "p2", AuthorID: "did:plc:bob", AuthorName: "Bob", PublishedAt: updated.Add(-time.Minute), Text: "newest", LikeCount: 3},
			{PostID: "p1", AuthorID: "did:plc:alice", AuthorName: "Alice", PublishedAt: updated.Add(-time.Hour), Text: "hello\nworld", CommentCount: 2},
		},
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "feed.json")
	cache := db.NewFileCache(path)
	snapshot := sampleSnapshot()

	require.NoError(t, cache.Save(context.Background(), snapshot))

	loaded, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot, *loaded)
}

func TestFileCacheEmptySnapshot(t *testing.T) {
	cache := db.NewFileCache(filepath.Join(t.TempDir(), "feed.json"))
	snapshot := models.FeedSnapshot{
		LastUpdated: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FollowList:  []models.Profile{},
		Posts:       []models.Post{},
	}

	require.NoError(t, cache.Save(context.Background(), snapshot))
	loaded, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot, *loaded)
}

func TestFileCacheAbsent(t *testing.T) {
	cache := db.NewFileCache(filepath.Join(t.TempDir(), "feed.json"))

	loaded, err := cache.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileCacheOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cache := db.NewFileCache(filepath.Join(dir, "feed.json"))

	first := sampleSnapshot()
	second := sampleSnapshot()
	second.Posts = second.Posts[:1]
	second.LastUpdated = second.LastUpdated.Add(time.Hour)

	require.NoError(t, cache.Save(context.Background(), first))
	require.NoError(t, cache.Save(context.Background(), second))

	loaded, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, *loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "feed.json", entries[0].Name())
}

func TestFileCacheCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "truncated",
			content: `{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [`,
		},
		{
			name:    "not json",
			content: "feed",
		},
		{
			name:    "unsupported version",
			content: `{"version": 99, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [], "posts": []}`,
		},
		{
			name:    "missing version",
			content: `{"lastUpdated": "2024-07-15T18:00:00Z", "followList": [], "posts": []}`,
		},
		{
			name:    "unknown field",
			content: `{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [], "posts": [], "extra": true}`,
		},
		{
			name:    "missing last updated",
			content: `{"version": 1, "followList": [], "posts": []}`,
		},
		{
			name:    "profile without id",
			content: `{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [{"displayName": "Nobody", "addedAt": "2024-07-15T18:00:00Z"}], "posts": []}`,
		},
		{
			name: "post without author",
			content: `{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [],
				"posts": [{"postId": "p1", "publishedAt": "2024-07-15T18:00:00Z", "text": ""}]}`,
		},
		{
			name: "duplicate posts",
			content: `{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [], "posts": [
				{"postId": "p1", "authorId": "a", "authorName": "A", "publishedAt": "2024-07-15T18:00:00Z", "text": "", "likeCount": 0, "commentCount": 0},
				{"postId": "p1", "authorId": "a", "authorName": "A", "publishedAt": "2024-07-15T17:00:00Z", "text": "", "likeCount": 0, "commentCount": 0}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "feed.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			loaded, err := db.NewFileCache(path).Load(context.Background())
			assert.ErrorIs(t, err, feeds.ErrCorruptCache)
			assert.Nil(t, loaded)
		})
	}
}

func TestFileCacheSaveCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.NewFileCache(path).Save(ctx, sampleSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestFileCacheLoadRejectsOutOfRangeTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "lastUpdated": "2024-07-15T18:00:00Z", "followList": [], "posts": [
		{"postId": "p1", "authorId": "a", "authorName": "A", "publishedAt": "9999-01-01T00:00:00Z", "text": "", "likeCount": 0, "commentCount": 0}]}`), 0o644))

	loaded, err := db.NewFileCache(path).Load(context.Background())
	assert.ErrorIs(t, err, feeds.ErrCorruptCache)
	assert.Nil(t, loaded)
}
