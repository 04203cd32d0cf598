package models

import "time"

// Profile is a followed external profile
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Headline    string    `json:"headline,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Post is a single post normalized from the provider
type Post struct {
	PostID       string    `json:"postId"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	PublishedAt  time.Time `json:"publishedAt"`
	Text         string    `json:"text"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
}

// FeedSnapshot is the persisted result of one refresh cycle.
// Posts are ordered newest first, ties broken by PostID ascending.
type FeedSnapshot struct {
	LastUpdated time.Time `json:"lastUpdated"`
	FollowList  []Profile `json:"followList"`
	Posts       []Post    `json:"posts"`
}

// ProfileDetails is what the provider returns for a profile lookup
type ProfileDetails struct {
	ID          string
	FirstName   string
	LastName    string
	DisplayName string
	Headline    string
}

// RawPost is a post as returned by the provider, before normalization
type RawPost struct {
	// ID is optional, some providers do not expose a stable post id
	ID          string
	Time        int64 // epoch milliseconds
	Commentary  string
	NumLikes    *int64
	NumComments *int64
}

// FetchFailure records a profile whose posts could not be fetched during a refresh
type FetchFailure struct {
	ProfileID   string `json:"profileId"`
	ProfileName string `json:"profileName"`
	Err         error  `json:"-"`
	Message     string `json:"message"`
}

// RefreshResult is returned from a refresh cycle
type RefreshResult struct {
	CycleID  string         `json:"cycle"`
	Snapshot FeedSnapshot   `json:"snapshot"`
	Failures []FetchFailure `json:"failures"`
}
