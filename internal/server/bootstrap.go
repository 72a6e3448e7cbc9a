package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/sitekeeper/internal/crypto"
	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/internal/server/storage"
)

// EnsureOperator создает оператора username, если его нет.
// Если оператор есть, а пароль не совпадает, пароль заменяется.
func EnsureOperator(ctx context.Context, operators storage.OperatorStorage, username, password string, logger *slog.Logger) error {
	existing, err := operators.GetOperatorByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrOperatorNotFound):
		// создаем ниже
	case err != nil:
		return fmt.Errorf("failed to look up operator: %w", err)
	default:
		err := crypto.VerifyPassword(password, existing.PasswordHash)
		if err == nil {
			logger.Debug("Operator already exists", "username", username)
			return nil
		}
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			return fmt.Errorf("failed to verify operator password: %w", err)
		}

		hash, err := crypto.HashPassword(password)
		if err != nil {
			return err
		}
		if err := operators.UpdatePassword(ctx, existing.ID, hash); err != nil {
			return fmt.Errorf("failed to update operator password: %w", err)
		}
		logger.Info("Operator password updated", "username", username)
		return nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	op := &models.Operator{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := operators.CreateOperator(ctx, op); err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	logger.Info("Operator created", "username", username, "operator_id", op.ID)
	return nil
}
