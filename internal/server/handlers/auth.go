package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/sitekeeper/internal/crypto"
	"github.com/iudanet/sitekeeper/internal/server/storage"
	"github.com/iudanet/sitekeeper/internal/validation"
	"github.com/iudanet/sitekeeper/pkg/api"
)

// TokenIssuer выпускает access token для оператора
type TokenIssuer interface {
	Issue(operatorID, username string) (string, int64, error)
}

// AuthHandler обрабатывает запросы авторизации операторов
type AuthHandler struct {
	logger    *slog.Logger
	operators storage.OperatorStorage
	tokens    TokenIssuer
	now       func() time.Time
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, operators storage.OperatorStorage, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		operators: operators,
		tokens:    tokens,
		now:       time.Now,
	}
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация оператора по паролю
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeBadRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		sendError(w, h.logger, api.ErrCodeBadRequest, "password is required", http.StatusBadRequest)
		return
	}

	op, err := h.operators.GetOperatorByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrOperatorNotFound) {
			h.logger.WarnContext(ctx, "login failed: operator not found", slog.String("username", req.Username))
			sendError(w, h.logger, api.ErrCodeUnauthorized, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get operator", slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.VerifyPassword(req.Password, op.PasswordHash); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			h.logger.WarnContext(ctx, "login failed: invalid password", slog.String("username", req.Username))
			sendError(w, h.logger, api.ErrCodeUnauthorized, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to verify password", slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	accessToken, expiresIn, err := h.tokens.Issue(op.ID, op.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.operators.UpdateLastLogin(ctx, op.ID, h.now()); err != nil {
		// Не критичная ошибка, логируем но не прерываем
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "operator logged in",
		slog.String("username", op.Username),
		slog.String("operator_id", op.ID))

	sendJSON(w, h.logger, api.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}
