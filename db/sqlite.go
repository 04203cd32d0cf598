package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"curafeed/feeds"
	"curafeed/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// rows per INSERT statement, well below SQLite's bound parameter limit
const insertChunk = 200

// SQLiteCache keeps the snapshot in an SQLite database. Every save replaces
// all rows within one transaction.
type SQLiteCache struct {
	db   *sql.DB
	path string
}

// NewSQLiteCache migrates the database at path and opens it
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &SQLiteCache{db: db, path: path}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Save(ctx context.Context, snapshot models.FeedSnapshot) error {
	// UnixNano silently wraps outside its range
	if err := checkStorable(snapshot); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"posts", "follow_list", "snapshot"} {
		query, args := sqlbuilder.SQLite.NewDeleteBuilder().DeleteFrom(table).Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertSnapshot := sqlbuilder.SQLite.NewInsertBuilder()
	insertSnapshot.InsertInto("snapshot").
		Cols("id", "version", "last_updated").
		Values(0, SchemaVersion, snapshot.LastUpdated.UnixNano())
	query, args := insertSnapshot.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for start := 0; start < len(snapshot.FollowList); start += insertChunk {
		end := min(start+insertChunk, len(snapshot.FollowList))
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("follow_list").Cols("position", "id", "display_name", "headline", "added_at")
		for i, p := range snapshot.FollowList[start:end] {
			ib.Values(start+i, p.ID, p.DisplayName, p.Headline, p.AddedAt.UnixNano())
		}
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert follow list: %w", err)
		}
	}

	for start := 0; start < len(snapshot.Posts); start += insertChunk {
		end := min(start+insertChunk, len(snapshot.Posts))
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("posts").Cols("position", "post_id", "author_id", "author_name",
			"published_at", "text", "like_count", "comment_count")
		for i, p := range snapshot.Posts[start:end] {
			ib.Values(start+i, p.PostID, p.AuthorID, p.AuthorName,
				p.PublishedAt.UnixNano(), p.Text, p.LikeCount, p.CommentCount)
		}
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert posts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.WithFields(log.Fields{
		"database": c.path,
		"profiles": len(snapshot.FollowList),
		"posts":    len(snapshot.Posts),
	}).Info("Saved feed cache")

	return nil
}

func (c *SQLiteCache) Load(ctx context.Context) (*models.FeedSnapshot, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectSnapshot := sqlbuilder.SQLite.NewSelectBuilder()
	selectSnapshot.Select("version", "last_updated").From("snapshot").Where(selectSnapshot.Equal("id", 0))
	query, args := selectSnapshot.Build()

	var version int
	var lastUpdated int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&version, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, c.checkOrphans(ctx, tx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", feeds.ErrCorruptCache, err)
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", feeds.ErrCorruptCache, version)
	}

	snapshot := &models.FeedSnapshot{
		LastUpdated: time.Unix(0, lastUpdated).UTC(),
	}

	snapshot.FollowList, err = loadFollowList(ctx, tx)
	if err != nil {
		return nil, err
	}
	snapshot.Posts, err = loadPosts(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := validate(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// checkOrphans reports rows left without a snapshot header as corruption
func (c *SQLiteCache) checkOrphans(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"follow_list", "posts"} {
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("count(*)").From(table)
		query, args := sb.Build()

		var count int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d rows in %s without a snapshot", feeds.ErrCorruptCache, count, table)
		}
	}
	return nil
}

func loadFollowList(ctx context.Context, tx *sql.Tx) ([]models.Profile, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "display_name", "headline", "added_at").From("follow_list")
	sb.OrderBy("position").Asc()
	query, args := sb.Build()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query follow list: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		var addedAt int64
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Headline, &addedAt); err != nil {
			return nil, fmt.Errorf("%w: scan profile: %v", feeds.ErrCorruptCache, err)
		}
		p.AddedAt = time.Unix(0, addedAt).UTC()
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func loadPosts(ctx context.Context, tx *sql.Tx) ([]models.Post, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("post_id", "author_id", "author_name", "published_at", "text", "like_count", "comment_count").
		From("posts")
	sb.OrderBy("position").Asc()
	query, args := sb.Build()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var p models.Post
		var publishedAt int64
		if err := rows.Scan(&p.PostID, &p.AuthorID, &p.AuthorName, &publishedAt,
			&p.Text, &p.LikeCount, &p.CommentCount); err != nil {
			return nil, fmt.Errorf("%w: scan post: %v", feeds.ErrCorruptCache, err)
		}
		p.PublishedAt = time.Unix(0, publishedAt).UTC()
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

var _ feeds.Cache = (*SQLiteCache)(nil)
