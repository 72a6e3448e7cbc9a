package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/internal/server/storage"
)

// CreateOperator creates a new operator in the storage
func (s *Storage) CreateOperator(ctx context.Context, op *models.Operator) error {
	query := `
		INSERT INTO operators (id, username, password_hash, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		op.Username,
		op.PasswordHash,
		op.CreatedAt,
		op.LastLogin,
	)

	if err != nil {
		// Проверяем на duplicate username
		if strings.Contains(err.Error(), "UNIQUE constraint failed: operators.username") {
			return storage.ErrOperatorAlreadyExists
		}
		return fmt.Errorf("failed to insert operator: %w", err)
	}

	return nil
}

// GetOperatorByUsername retrieves operator by username
func (s *Storage) GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error) {
	query := `
		SELECT id, username, password_hash, created_at, last_login
		FROM operators
		WHERE username = ?
	`

	op := &models.Operator{}
	var lastLogin sql.NullTime

	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&op.ID,
		&op.Username,
		&op.PasswordHash,
		&op.CreatedAt,
		&lastLogin,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	if lastLogin.Valid {
		op.LastLogin = &lastLogin.Time
	}

	return op, nil
}

// UpdatePassword replaces the password hash of the operator
func (s *Storage) UpdatePassword(ctx context.Context, operatorID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE operators SET password_hash = ? WHERE id = ?`, passwordHash, operatorID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireAffected(result)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, operatorID string, lastLogin time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE operators SET last_login = ? WHERE id = ?`, lastLogin, operatorID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrOperatorNotFound
	}

	return nil
}
