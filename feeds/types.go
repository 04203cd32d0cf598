// Package feeds aggregates posts from followed profiles into a single
// time-filtered, deduplicated feed and persists it through a Cache.
package feeds

import (
	"context"

	"curafeed/models"
)

// Provider is the external profile data provider. Implementations must be
// authenticated before they are handed to the engine.
type Provider interface {
	// GetProfile returns nil, nil when the profile does not exist
	GetProfile(ctx context.Context, id string) (*models.ProfileDetails, error)
	// GetRecentPosts returns up to limit of the most recent posts by id
	GetRecentPosts(ctx context.Context, id string, limit int) ([]models.RawPost, error)
}

// Cache stores the latest feed snapshot
type Cache interface {
	// Save replaces any previously saved snapshot
	Save(ctx context.Context, snapshot models.FeedSnapshot) error
	// Load returns nil, nil if nothing was saved yet and an error wrapping
	// ErrCorruptCache if the stored data cannot be read back
	Load(ctx context.Context) (*models.FeedSnapshot, error)
}

// Batch holds the posts fetched for one profile
type Batch struct {
	Profile models.Profile
	Posts   []models.Post
}
