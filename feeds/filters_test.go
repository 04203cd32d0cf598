package feeds_test

import (
	"testing"
	"time"

	"curafeed/feeds"
	"curafeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterWindow(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	posts := []models.Post{
		{PostID: "fresh", PublishedAt: now.Add(-time.Hour)},
		{PostID: "boundary", PublishedAt: cutoff},
		{PostID: "just-too-old", PublishedAt: cutoff.Add(-time.Millisecond)},
		{PostID: "ancient", PublishedAt: now.Add(-40 * 24 * time.Hour)},
		{PostID: "future", PublishedAt: now.Add(time.Hour)},
	}

	kept, err := feeds.FilterWindow(posts, 7, now)
	require.NoError(t, err)

	ids := []string{}
	for _, p := range kept {
		ids = append(ids, p.PostID)
	}
	assert.Equal(t, []string{"fresh", "boundary", "future"}, ids)
	assert.Len(t, posts, 5, "input is not modified")
}

func TestFilterWindowDaysBack(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	posts := []models.Post{{PostID: "old", PublishedAt: now.Add(-90 * 24 * time.Hour)}}

	tests := []struct {
		name     string
		daysBack int
		wantErr  bool
		kept     int
	}{
		{name: "zero", daysBack: 0, wantErr: true},
		{name: "negative", daysBack: -3, wantErr: true},
		{name: "one day", daysBack: 1, kept: 0},
		{name: "beyond the usual range is not clamped", daysBack: 365, kept: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, err := feeds.FilterWindow(posts, tt.daysBack, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, feeds.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Len(t, kept, tt.kept)
		})
	}
}
