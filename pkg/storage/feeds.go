package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FeedStore publishes rendered calendar feeds as files under a base
// directory, typically one served by a static web server.
type FeedStore struct {
	baseDir string
}

// NewFeedStore ensures the base directory exists and returns a handle.
func NewFeedStore(baseDir string) (*FeedStore, error) {
	if baseDir == "" {
		baseDir = "./feeds"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create feed directory: %w", err)
	}
	return &FeedStore{baseDir: baseDir}, nil
}

// FeedName builds a file name for an owner's feed in the given format. Path
// separators and other awkward characters are replaced.
func FeedName(ownerID, format string) string {
	name := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".").Replace(ownerID)
	if name == "" {
		name = "na"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name + "." + format
}

// Save replaces the feed atomically so readers never see a partial file.
func (s *FeedStore) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare feed directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".feed-*")
	if err != nil {
		return "", fmt.Errorf("create feed file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("write feed file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("close feed file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("chmod feed file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("publish feed file: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for a published feed.
func (s *FeedStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	return file, nil
}

// Delete removes a published feed if present.
func (s *FeedStore) Delete(filename string) error {
	if err := os.Remove(s.resolve(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete feed file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes feeds not refreshed within ttl, e.g. those of
// owners that became inactive, and returns their names.
func (s *FeedStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup feeds: %w", err)
	}
	return deleted, nil
}

// Path returns the location of filename on disk.
func (s *FeedStore) Path(filename string) string {
	return s.resolve(filename)
}

func (s *FeedStore) resolve(filename string) string {
	return filepath.Join(s.baseDir, filepath.Clean("/"+filename))
}
