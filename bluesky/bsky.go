package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"curafeed/feeds"
	"curafeed/models"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPDSHost    = "https://bsky.social"
	DefaultPublicHost = "https://public.api.bsky.app"

	// PathMarker precedes the handle in bsky.app profile URLs
	PathMarker = "/profile/"
)

type Credentials struct {
	Identifier string
	Password   string
}

// Client reads profiles and author feeds from a Bluesky AppView or PDS
type Client struct {
	mu   sync.RWMutex
	xrpc *xrpc.Client
}

// NewPublicClient returns an anonymous client, enough for public profiles and feeds
func NewPublicClient(host string) *Client {
	if host == "" {
		host = DefaultPublicHost
	}
	return &Client{xrpc: &xrpc.Client{
		Host:   host,
		Client: &http.Client{Timeout: 30 * time.Second},
	}}
}

func retryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)
}

// withRetry retries op on transient failures, other errors are returned as is
func withRetry(ctx context.Context, host string, op func() error) error {
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, retryPolicy(ctx), func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"host":  host,
			"wait":  wait,
			"error": err,
		}).Warn("Session request failed, retrying")
	})
}

// ClientFromCredentials creates a session on host. Transient failures are
// retried a few times, rejected credentials are not.
func ClientFromCredentials(ctx context.Context, host string, creds *Credentials) (*Client, error) {
	if host == "" {
		host = DefaultPDSHost
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var auth *atproto.ServerCreateSession_Output
	err := withRetry(ctx, host, func() error {
		var err error
		auth, err = atproto.ServerCreateSession(ctx, &xrpc.Client{Host: host, Client: httpClient}, &atproto.ServerCreateSession_Input{
			Identifier: creds.Identifier,
			Password:   creds.Password,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	xrpcClient := &xrpc.Client{
		Host: host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: httpClient,
	}

	return &Client{xrpc: xrpcClient}, nil
}

func (c *Client) current() *xrpc.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.xrpc
}

// refreshSession swaps in a client with fresh tokens. stale is the client
// whose access token expired; if another call already replaced it nothing
// is done.
func (c *Client) refreshSession(ctx context.Context, stale *xrpc.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.xrpc != stale {
		return nil
	}

	// refreshSession authenticates with the refresh token
	refresher := &xrpc.Client{
		Host: stale.Host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  stale.Auth.RefreshJwt,
			RefreshJwt: stale.Auth.RefreshJwt,
			Handle:     stale.Auth.Handle,
			Did:        stale.Auth.Did,
		},
		Client: stale.Client,
	}

	var auth *atproto.ServerRefreshSession_Output
	err := withRetry(ctx, stale.Host, func() error {
		var err error
		auth, err = atproto.ServerRefreshSession(ctx, refresher)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	c.xrpc = &xrpc.Client{
		Host: stale.Host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: stale.Client,
	}

	log.WithFields(log.Fields{
		"host":   stale.Host,
		"handle": auth.Handle,
	}).Info("Refreshed session")
	return nil
}

// call runs fn with the current client. An expired access token is
// refreshed once and fn retried.
func (c *Client) call(ctx context.Context, fn func(*xrpc.Client) error) error {
	client := c.current()
	err := fn(client)
	if err == nil || client.Auth == nil || !isExpiredToken(err) {
		return err
	}

	if err := c.refreshSession(ctx, client); err != nil {
		return err
	}
	return fn(c.current())
}

// GetProfile looks up an actor by handle or DID. The DID is used as the
// profile id since handles can change.
func (c *Client) GetProfile(ctx context.Context, id string) (*models.ProfileDetails, error) {
	var profile *bsky.ActorDefs_ProfileViewDetailed
	err := c.call(ctx, func(client *xrpc.Client) error {
		var err error
		profile, err = bsky.ActorGetProfile(ctx, client, id)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	details := &models.ProfileDetails{
		ID:          profile.Did,
		DisplayName: deref(profile.DisplayName),
		Headline:    firstLine(deref(profile.Description)),
	}
	if details.DisplayName == "" {
		details.DisplayName = profile.Handle
	}
	return details, nil
}

// GetRecentPosts returns the latest posts authored by the actor. Reposts are skipped.
func (c *Client) GetRecentPosts(ctx context.Context, id string, limit int) ([]models.RawPost, error) {
	var out *bsky.FeedGetAuthorFeed_Output
	err := c.call(ctx, func(client *xrpc.Client) error {
		var err error
		out, err = bsky.FeedGetAuthorFeed(ctx, client, id, "", "posts_no_replies", false, int64(min(limit, 100)))
		return err
	})
	if err != nil {
		return nil, err
	}

	posts := make([]models.RawPost, 0, len(out.Feed))
	for _, item := range out.Feed {
		if item.Post == nil || item.Reason != nil {
			continue
		}
		raw, err := rawPost(item.Post)
		if err != nil {
			log.WithFields(log.Fields{
				"uri":   item.Post.Uri,
				"error": err,
			}).Warn("Skipping post")
			continue
		}
		posts = append(posts, raw)
	}
	return posts, nil
}

func rawPost(view *bsky.FeedDefs_PostView) (models.RawPost, error) {
	raw := models.RawPost{
		ID:          view.Uri,
		NumLikes:    view.LikeCount,
		NumComments: view.ReplyCount,
	}

	created := view.IndexedAt
	if view.Record != nil {
		if record, ok := view.Record.Val.(*bsky.FeedPost); ok {
			raw.Commentary = record.Text
			if record.CreatedAt != "" {
				created = record.CreatedAt
			}
		}
	}

	t, err := ParseTime(created)
	if err != nil {
		return models.RawPost{}, err
	}
	raw.Time = t.UnixMilli()
	return raw, nil
}

// ParseTime parses an AT Protocol datetime
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	return t, nil
}

func isNotFound(err error) bool {
	var xe *xrpc.Error
	if !errors.As(err, &xe) {
		return false
	}
	if xe.StatusCode == http.StatusNotFound {
		return true
	}
	var inner *xrpc.XRPCError
	if xe.StatusCode == http.StatusBadRequest && errors.As(xe.Wrapped, &inner) {
		return strings.Contains(strings.ToLower(inner.Message), "not found")
	}
	return false
}

func isExpiredToken(err error) bool {
	var xe *xrpc.Error
	if !errors.As(err, &xe) {
		return false
	}
	var inner *xrpc.XRPCError
	return errors.As(xe.Wrapped, &inner) && inner.ErrStr == "ExpiredToken"
}

func isTransient(err error) bool {
	var xe *xrpc.Error
	if errors.As(err, &xe) {
		return xe.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

var _ feeds.Provider = (*Client)(nil)
