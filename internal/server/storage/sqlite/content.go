package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/internal/server/storage"
)

const recordColumns = `key, topic, version, fields, nested, updated_at`

// GetRecord retrieves a live record by key
func (s *Storage) GetRecord(ctx context.Context, key string) (*models.ContentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM content_records WHERE key = ? AND deleted = 0`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListRecords returns live records of topic ordered by key
func (s *Storage) ListRecords(ctx context.Context, topic string) ([]*models.ContentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM content_records WHERE deleted = 0`
	var args []any
	if topic != "" && topic != models.AllTopics {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY topic, key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ContentRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// WriteRecord stores rec under optimistic concurrency control.
// Topic задается при создании записи и дальше не меняется.
func (s *Storage) WriteRecord(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (models.ChangeEvent, error) {
	fieldsJSON, nestedJSON, err := encodeContent(rec)
	if err != nil {
		return models.ChangeEvent{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cur, err := currentRow(ctx, tx, rec.Key)
	if err != nil {
		return models.ChangeEvent{}, err
	}

	now := s.now().UTC()
	stored := rec.Clone()
	stored.UpdatedAt = now
	op := models.OpUpdate

	switch {
	case cur == nil:
		// новая запись
		if expectedVersion != 0 {
			return models.ChangeEvent{}, storage.ErrRecordNotFound
		}
		stored.Version = 1
		op = models.OpInsert
		_, err = tx.ExecContext(ctx, `
			INSERT INTO content_records (key, topic, version, fields, nested, deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		`, stored.Key, stored.Topic, stored.Version, fieldsJSON, nestedJSON, now.UnixNano(), now.UnixNano())

	case cur.deleted:
		// воскрешение удаленной записи допускается только как вставка
		if expectedVersion != 0 {
			return models.ChangeEvent{}, storage.ErrRecordNotFound
		}
		stored.Topic = cur.topic
		stored.Version = cur.version + 1
		op = models.OpInsert
		_, err = tx.ExecContext(ctx, `
			UPDATE content_records
			SET version = ?, fields = ?, nested = ?, deleted = 0, updated_at = ?
			WHERE key = ?
		`, stored.Version, fieldsJSON, nestedJSON, now.UnixNano(), stored.Key)

	default:
		if expectedVersion != cur.version {
			return models.ChangeEvent{}, fmt.Errorf("%w: expected %d, stored %d",
				storage.ErrVersionConflict, expectedVersion, cur.version)
		}
		stored.Topic = cur.topic
		stored.Version = cur.version + 1
		_, err = tx.ExecContext(ctx, `
			UPDATE content_records
			SET version = ?, fields = ?, nested = ?, updated_at = ?
			WHERE key = ?
		`, stored.Version, fieldsJSON, nestedJSON, now.UnixNano(), stored.Key)
	}
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to write record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return models.RecordEvent(op, stored), nil
}

// DeleteRecord marks the record deleted and bumps its version
func (s *Storage) DeleteRecord(ctx context.Context, key string, expectedVersion int64) (models.ChangeEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cur, err := currentRow(ctx, tx, key)
	if err != nil {
		return models.ChangeEvent{}, err
	}
	if cur == nil || cur.deleted {
		return models.ChangeEvent{}, storage.ErrRecordNotFound
	}
	if expectedVersion != cur.version {
		return models.ChangeEvent{}, fmt.Errorf("%w: expected %d, stored %d",
			storage.ErrVersionConflict, expectedVersion, cur.version)
	}

	version := cur.version + 1
	_, err = tx.ExecContext(ctx, `
		UPDATE content_records SET version = ?, deleted = 1, updated_at = ? WHERE key = ?
	`, version, s.now().UTC().UnixNano(), key)
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to delete record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return models.ChangeEvent{
		Topic:   cur.topic,
		Op:      models.OpDelete,
		Key:     key,
		Version: version,
	}, nil
}

// rowState текущее состояние строки внутри транзакции
type rowState struct {
	topic   string
	version int64
	deleted bool
}

func currentRow(ctx context.Context, tx *sql.Tx, key string) (*rowState, error) {
	var st rowState
	err := tx.QueryRowContext(ctx,
		`SELECT topic, version, deleted FROM content_records WHERE key = ?`, key,
	).Scan(&st.topic, &st.version, &st.deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read current version: %w", err)
	}
	return &st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ContentRecord, error) {
	var (
		fieldsJSON, nestedJSON string
		updatedAt              int64
	)
	rec := &models.ContentRecord{}

	if err := row.Scan(&rec.Key, &rec.Topic, &rec.Version, &fieldsJSON, &nestedJSON, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", rec.Key, err)
	}
	if err := json.Unmarshal([]byte(nestedJSON), &rec.Nested); err != nil {
		return nil, fmt.Errorf("failed to decode nested of %s: %w", rec.Key, err)
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	if rec.Nested == nil {
		rec.Nested = make(map[string][]models.Item)
	}
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return rec, nil
}

func encodeContent(rec *models.ContentRecord) (string, string, error) {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	nested := rec.Nested
	if nested == nil {
		nested = map[string][]models.Item{}
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode fields: %w", err)
	}
	nestedJSON, err := json.Marshal(nested)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode nested: %w", err)
	}
	return string(fieldsJSON), string(nestedJSON), nil
}
