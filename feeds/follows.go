package feeds

import (
	"sync"

	"curafeed/models"
)

// FollowList is an ordered set of followed profiles keyed by profile id
type FollowList struct {
	sync.RWMutex
	profiles []models.Profile
	index    map[string]int
}

func NewFollowList() *FollowList {
	return &FollowList{
		profiles: make([]models.Profile, 0),
		index:    make(map[string]int),
	}
}

// Add inserts the profile unless one with the same id is already followed.
// Returns whether an insertion happened.
func (f *FollowList) Add(profile models.Profile) bool {
	f.Lock()
	defer f.Unlock()

	if _, ok := f.index[profile.ID]; ok {
		return false
	}
	f.index[profile.ID] = len(f.profiles)
	f.profiles = append(f.profiles, profile)
	return true
}

// Remove drops the profile with the given id, keeping the order of the rest
func (f *FollowList) Remove(id string) bool {
	f.Lock()
	defer f.Unlock()

	pos, ok := f.index[id]
	if !ok {
		return false
	}
	f.profiles = append(f.profiles[:pos], f.profiles[pos+1:]...)
	delete(f.index, id)
	for i := pos; i < len(f.profiles); i++ {
		f.index[f.profiles[i].ID] = i
	}
	return true
}

// List returns a copy of the followed profiles in insertion order
func (f *FollowList) List() []models.Profile {
	f.RLock()
	defer f.RUnlock()

	out := make([]models.Profile, len(f.profiles))
	copy(out, f.profiles)
	return out
}

func (f *FollowList) Contains(id string) bool {
	f.RLock()
	defer f.RUnlock()

	_, ok := f.index[id]
	return ok
}

func (f *FollowList) Len() int {
	f.RLock()
	defer f.RUnlock()

	return len(f.profiles)
}
