package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"curafeed/models"

	log "github.com/sirupsen/logrus"
)

// DefaultPathMarker is the path segment that precedes the profile id in profile URLs
const DefaultPathMarker = "/in/"

// Resolver turns user supplied profile references into canonical profiles
type Resolver struct {
	provider   Provider
	pathMarker string
	now        func() time.Time
}

func NewResolver(provider Provider, pathMarker string, now func() time.Time) *Resolver {
	if pathMarker == "" {
		pathMarker = DefaultPathMarker
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{provider: provider, pathMarker: pathMarker, now: now}
}

// ParseReference extracts the profile id candidate from a profile URL or a bare id.
// The id is whatever follows the last occurrence of pathMarker, without
// surrounding slashes, query string or fragment.
func ParseReference(reference string, pathMarker string) (string, error) {
	candidate := strings.TrimSpace(reference)

	if pathMarker != "" {
		if idx := strings.LastIndex(candidate, pathMarker); idx >= 0 {
			candidate = candidate[idx+len(pathMarker):]
		}
	}

	if idx := strings.IndexAny(candidate, "?#"); idx >= 0 {
		candidate = candidate[:idx]
	}
	candidate = strings.Trim(candidate, "/")

	if candidate == "" {
		return "", fmt.Errorf("%w: %q contains no profile id", ErrInvalidReference, reference)
	}
	if strings.ContainsAny(candidate, "/ \t\r\n") {
		return "", fmt.Errorf("%w: %q is not a profile id", ErrInvalidReference, reference)
	}

	return candidate, nil
}

// Resolve validates the reference and looks the profile up with the provider.
// The returned profile is not added to any follow list.
func (r *Resolver) Resolve(ctx context.Context, reference string) (models.Profile, error) {
	id, err := ParseReference(reference, r.pathMarker)
	if err != nil {
		return models.Profile{}, err
	}

	details, err := r.provider.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return models.Profile{}, err
		}
		return models.Profile{}, fmt.Errorf("%w: looking up %s: %w", ErrProvider, id, err)
	}
	if details == nil {
		return models.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}

	profile := models.Profile{
		ID:          id,
		DisplayName: displayName(details),
		Headline:    strings.TrimSpace(details.Headline),
		AddedAt:     r.now().UTC(),
	}
	if details.ID != "" {
		profile.ID = details.ID
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.ID
	}

	log.WithFields(log.Fields{
		"reference": reference,
		"id":        profile.ID,
		"name":      profile.DisplayName,
	}).Info("Resolved profile")

	return profile, nil
}

func displayName(details *models.ProfileDetails) string {
	if name := strings.TrimSpace(details.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(details.FirstName + " " + details.LastName)
}
