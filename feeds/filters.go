package feeds

import (
	"fmt"
	"time"

	"curafeed/models"

	"github.com/samber/lo"
)

// MaxDaysBack is the widest window the HTTP API accepts. The engine itself
// only requires a positive number of days.
const MaxDaysBack = 30

// Cutoff returns the oldest publish time kept for a window of daysBack days
func Cutoff(now time.Time, daysBack int) time.Time {
	return now.Add(-time.Duration(daysBack) * 24 * time.Hour)
}

// FilterWindow keeps the posts published at or after now minus daysBack days
func FilterWindow(posts []models.Post, daysBack int, now time.Time) ([]models.Post, error) {
	if daysBack < 1 {
		return nil, fmt.Errorf("%w: days back must be at least 1, got %d", ErrInvalidArgument, daysBack)
	}

	cutoff := Cutoff(now, daysBack)
	return lo.Filter(posts, func(p models.Post, _ int) bool {
		return !p.PublishedAt.Before(cutoff)
	}), nil
}
