package engine

import (
	"context"

	"github.com/iudanet/sitekeeper/internal/models"
)

//go:generate moq -out port_mock.go . PersistencePort

// PersistencePort is read/write access to the backend of record.
type PersistencePort interface {
	// Read возвращает текущую запись или models.ErrNotFound
	Read(ctx context.Context, key string) (*models.ContentRecord, error)

	// ReadAll возвращает все живые записи топика ("" или "*" - все топики)
	ReadAll(ctx context.Context, topicFilter string) ([]*models.ContentRecord, error)

	// Write сохраняет запись, если ее текущая версия равна expectedVersion.
	// expectedVersion 0 создает запись. Возвращает новую версию или
	// models.ErrVersionConflict.
	Write(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error)

	// Delete удаляет запись с той же проверкой версии
	Delete(ctx context.Context, key string, expectedVersion int64) (int64, error)
}
