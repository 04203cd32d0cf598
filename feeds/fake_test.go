package feeds_test

import (
	"context"
	"errors"
	"sync"

	"curafeed/models"
)

var errUpstream = errors.New("upstream down")

// fakeProvider serves profiles and posts from maps. Profiles listed in
// failPosts return errUpstream when their posts are requested.
type fakeProvider struct {
	mu         sync.Mutex
	profiles   map[string]*models.ProfileDetails
	posts      map[string][]models.RawPost
	failPosts  map[string]bool
	profileErr error
	// when set, GetRecentPosts signals started and waits for release or ctx
	started chan string
	release chan struct{}
	calls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		profiles:  make(map[string]*models.ProfileDetails),
		posts:     make(map[string][]models.RawPost),
		failPosts: make(map[string]bool),
	}
}

func (f *fakeProvider) GetProfile(ctx context.Context, id string) (*models.ProfileDetails, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profiles[id], nil
}

func (f *fakeProvider) GetRecentPosts(ctx context.Context, id string, limit int) ([]models.RawPost, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- id
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failPosts[id] {
		return nil, errUpstream
	}
	return f.posts[id], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memCache is an in-memory Cache
type memCache struct {
	mu       sync.Mutex
	snapshot *models.FeedSnapshot
	saves    int
	saveErr  error
	loadErr  error
}

func (m *memCache) Save(ctx context.Context, snapshot models.FeedSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snapshot = &snapshot
	return nil
}

func (m *memCache) Load(ctx context.Context) (*models.FeedSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snapshot, nil
}

func int64p(v int64) *int64 {
	return &v
}
