package storage

import (
	"context"
	"time"

	"github.com/iudanet/sitekeeper/internal/models"
)

// OperatorStorage defines interface for operator accounts persistence
type OperatorStorage interface {
	// CreateOperator creates a new operator
	// Returns ErrOperatorAlreadyExists if username is taken
	CreateOperator(ctx context.Context, op *models.Operator) error

	// GetOperatorByUsername retrieves operator by username
	// Returns ErrOperatorNotFound if operator doesn't exist
	GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error)

	// UpdatePassword replaces the password hash of the operator
	// Returns ErrOperatorNotFound if operator doesn't exist
	UpdatePassword(ctx context.Context, operatorID, passwordHash string) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, operatorID string, lastLogin time.Time) error
}
