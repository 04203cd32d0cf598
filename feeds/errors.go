package feeds

import (
	"errors"
)

var (
	ErrInvalidReference  = errors.New("invalid profile reference")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrProvider          = errors.New("provider error")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrCorruptCache      = errors.New("cached feed is unreadable")
	ErrRefreshInProgress = errors.New("a refresh is already in progress")
)

// Error kinds reported to consumers of the engine
const (
	KindInvalidReference  = "invalid_reference"
	KindProfileNotFound   = "profile_not_found"
	KindProvider          = "provider_error"
	KindInvalidArgument   = "invalid_argument"
	KindCorruptCache      = "corrupt_cache"
	KindRefreshInProgress = "refresh_in_progress"
	KindInternal          = "internal"
)

// ErrorKind maps an error returned by the engine to a stable kind string.
// A nil error maps to the empty string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidReference):
		return KindInvalidReference
	case errors.Is(err, ErrProfileNotFound):
		return KindProfileNotFound
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrCorruptCache):
		return KindCorruptCache
	case errors.Is(err, ErrRefreshInProgress):
		return KindRefreshInProgress
	default:
		return KindInternal
	}
}
