package storage

import (
	"context"
	"time"

	"github.com/iudanet/sitekeeper/internal/models"
)

//go:generate moq -out snapshotcache_mock.go . SnapshotCache

// SnapshotCache keeps the last known records of a topic for offline listing.
// It is never a source of truth: a live console always resyncs on connect.
type SnapshotCache interface {
	// SaveSnapshot replaces the cached records of topic
	SaveSnapshot(ctx context.Context, snap *CachedSnapshot) error

	// LoadSnapshot returns the cached records of topic
	// Returns ErrSnapshotNotFound if the topic was never cached
	LoadSnapshot(ctx context.Context, topic string) (*CachedSnapshot, error)

	// ListTopics returns cached topics sorted by name
	ListTopics(ctx context.Context) ([]string, error)

	// DeleteSnapshot removes the cached records of topic
	DeleteSnapshot(ctx context.Context, topic string) error
}

// CachedSnapshot is the stored state of one topic.
type CachedSnapshot struct {
	SyncedAt time.Time               `json:"synced_at"`
	Topic    string                  `json:"topic"`
	Records  []*models.ContentRecord `json:"records"`
}
