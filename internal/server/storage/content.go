package storage

import (
	"context"

	"github.com/iudanet/sitekeeper/internal/models"
)

// ContentStorage defines interface for versioned content records persistence.
// Every successful write returns the change event that describes it.
type ContentStorage interface {
	// GetRecord retrieves a live record by key
	// Returns ErrRecordNotFound if record doesn't exist or is deleted
	GetRecord(ctx context.Context, key string) (*models.ContentRecord, error)

	// ListRecords returns live records of topic ordered by key.
	// Empty topic or models.AllTopics lists every topic.
	ListRecords(ctx context.Context, topic string) ([]*models.ContentRecord, error)

	// WriteRecord stores rec if expectedVersion matches the stored version.
	// expectedVersion 0 creates the record or resurrects a deleted one.
	// Returns ErrVersionConflict or ErrRecordNotFound.
	WriteRecord(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (models.ChangeEvent, error)

	// DeleteRecord marks the record deleted and bumps its version.
	// Returns ErrVersionConflict or ErrRecordNotFound.
	DeleteRecord(ctx context.Context, key string, expectedVersion int64) (models.ChangeEvent, error)
}
