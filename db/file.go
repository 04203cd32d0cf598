package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"curafeed/feeds"
	"curafeed/models"

	log "github.com/sirupsen/logrus"
)

// FileCache keeps the snapshot in a single JSON file. Writes go to a
// temporary file in the same directory which is then renamed over the
// target, so a reader never sees a partial write.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Path() string {
	return c.path
}

func (c *FileCache) Save(ctx context.Context, snapshot models.FeedSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkStorable(snapshot); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record{Version: SchemaVersion, FeedSnapshot: snapshot}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	// Removing after a successful rename fails harmlessly
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	log.WithFields(log.Fields{
		"path":  c.path,
		"posts": len(snapshot.Posts),
		"bytes": len(data),
	}).Info("Saved feed cache")

	return nil
}

func (c *FileCache) Load(ctx context.Context) (*models.FeedSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rec record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", feeds.ErrCorruptCache, c.path, err)
	}
	if rec.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", feeds.ErrCorruptCache, c.path, rec.Version)
	}

	snapshot := rec.FeedSnapshot
	if err := validate(&snapshot); err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	return &snapshot, nil
}

var _ feeds.Cache = (*FileCache)(nil)
