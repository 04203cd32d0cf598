// Package db persists feed snapshots, either as a single JSON file or in an
// SQLite database.
package db

import (
	"fmt"

	"curafeed/feeds"
	"curafeed/models"
)

// SchemaVersion is bumped whenever the persisted layout changes. Snapshots
// with any other version are reported as corrupt.
const SchemaVersion = 1

// record is the on-disk form of a snapshot
type record struct {
	Version int `json:"version"`
	models.FeedSnapshot
}

// validate checks the fields every reader relies on
func validate(snapshot *models.FeedSnapshot) error {
	if snapshot.LastUpdated.IsZero() {
		return fmt.Errorf("%w: missing lastUpdated", feeds.ErrCorruptCache)
	}
	for i, p := range snapshot.FollowList {
		if p.ID == "" {
			return fmt.Errorf("%w: profile %d has no id", feeds.ErrCorruptCache, i)
		}
	}
	seen := make(map[string]struct{}, len(snapshot.Posts))
	for i, p := range snapshot.Posts {
		if p.PostID == "" || p.AuthorID == "" {
			return fmt.Errorf("%w: post %d has no id or author", feeds.ErrCorruptCache, i)
		}
		if p.LikeCount < 0 || p.CommentCount < 0 {
			return fmt.Errorf("%w: post %s has negative counters", feeds.ErrCorruptCache, p.PostID)
		}
		if !feeds.ValidPostTime(p.PublishedAt) {
			return fmt.Errorf("%w: post %s has an out of range publish time", feeds.ErrCorruptCache, p.PostID)
		}
		if _, ok := seen[p.PostID]; ok {
			return fmt.Errorf("%w: post %s appears twice", feeds.ErrCorruptCache, p.PostID)
		}
		seen[p.PostID] = struct{}{}
	}

	if snapshot.FollowList == nil {
		snapshot.FollowList = []models.Profile{}
	}
	if snapshot.Posts == nil {
		snapshot.Posts = []models.Post{}
	}
	return nil
}

// checkStorable rejects snapshots with timestamps a backend cannot encode
// without loss
func checkStorable(snapshot models.FeedSnapshot) error {
	if !feeds.ValidPostTime(snapshot.LastUpdated) {
		return fmt.Errorf("%w: lastUpdated %s is out of range", feeds.ErrInvalidArgument, snapshot.LastUpdated)
	}
	for _, p := range snapshot.FollowList {
		if !feeds.ValidPostTime(p.AddedAt) {
			return fmt.Errorf("%w: profile %s added at %s is out of range", feeds.ErrInvalidArgument, p.ID, p.AddedAt)
		}
	}
	for _, p := range snapshot.Posts {
		if !feeds.ValidPostTime(p.PublishedAt) {
			return fmt.Errorf("%w: post %s published at %s is out of range", feeds.ErrInvalidArgument, p.PostID, p.PublishedAt)
		}
	}
	return nil
}
