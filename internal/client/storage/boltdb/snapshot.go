package boltdb

import (
	"context"
	"fmt"

	"github.com/iudanet/sitekeeper/internal/client/storage"
)

// SaveSnapshot replaces the cached records of a topic
func (s *Storage) SaveSnapshot(_ context.Context, snap *storage.CachedSnapshot) error {
	if snap == nil || snap.Topic == "" {
		return fmt.Errorf("snapshot topic is required")
	}
	if err := s.putJSON(bucketSnapshots, []byte(snap.Topic), snap); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.Topic, err)
	}
	return nil
}

// LoadSnapshot returns the cached records of a topic
func (s *Storage) LoadSnapshot(_ context.Context, topic string) (*storage.CachedSnapshot, error) {
	var snap storage.CachedSnapshot
	if err := s.getJSON(bucketSnapshots, []byte(topic), &snap); err != nil {
		return nil, notFound(err, storage.ErrSnapshotNotFound)
	}
	return &snap, nil
}

// ListTopics returns cached topics; bbolt iterates keys in byte order
func (s *Storage) ListTopics(_ context.Context) ([]string, error) {
	return s.keys(bucketSnapshots)
}

// DeleteSnapshot removes the cached records of a topic
func (s *Storage) DeleteSnapshot(_ context.Context, topic string) error {
	return notFound(s.deleteKey(bucketSnapshots, []byte(topic)), storage.ErrSnapshotNotFound)
}
