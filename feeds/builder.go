package feeds

import (
	"slices"
	"strings"

	"curafeed/models"
)

// Assemble merges the batches into a single feed. Posts sharing a PostID are
// collapsed to the one seen last in batch order. The result is ordered newest
// first with ties broken by PostID ascending. The batches are not modified.
func Assemble(batches []Batch) []models.Post {
	total := 0
	for _, b := range batches {
		total += len(b.Posts)
	}

	byID := make(map[string]int, total)
	out := make([]models.Post, 0, total)
	for _, b := range batches {
		for _, p := range b.Posts {
			if pos, ok := byID[p.PostID]; ok {
				out[pos] = p
				continue
			}
			byID[p.PostID] = len(out)
			out = append(out, p)
		}
	}

	slices.SortFunc(out, ComparePosts)
	return out
}

// ComparePosts orders posts newest first, then by PostID ascending
func ComparePosts(a, b models.Post) int {
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return strings.Compare(a.PostID, b.PostID)
}
