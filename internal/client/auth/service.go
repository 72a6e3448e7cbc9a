package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/storage"
	"github.com/iudanet/sitekeeper/internal/validation"
	"github.com/iudanet/sitekeeper/pkg/api"
)

var (
	// ErrNotLoggedIn возвращается, если сессия оператора не сохранена
	ErrNotLoggedIn = errors.New("not logged in, run 'login' first")

	// ErrSessionExpired возвращается, если срок действия токена истек
	ErrSessionExpired = errors.New("session expired, run 'login' again")

	// ErrServerMismatch возвращается, если сессия сохранена для другого сервера
	ErrServerMismatch = errors.New("session belongs to another server")
)

// Service управляет сессией оператора консоли:
// логин на сервере, хранение токена в локальном хранилище и восстановление при запуске.
type Service struct {
	client    Authenticator
	store     storage.AuthStorage
	now       func() time.Time
	logger    *slog.Logger
	serverURL string
}

// NewService создает новый сервис сессии
func NewService(client Authenticator, store storage.AuthStorage, serverURL string, logger *slog.Logger) *Service {
	return &Service{
		client:    client,
		store:     store,
		serverURL: serverURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Login выполняет аутентификацию оператора и сохраняет токен
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if password == "" {
		return nil, fmt.Errorf("invalid password: password cannot be empty")
	}

	resp, err := s.client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	authData := &storage.AuthData{
		Username:    username,
		ServerURL:   s.serverURL,
		AccessToken: resp.AccessToken,
		ExpiresAt:   s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}

	if err := s.store.SaveAuth(ctx, authData); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.client.SetToken(authData.AccessToken)
	s.logger.Info("operator logged in", "username", username, "server", s.serverURL)

	return authData, nil
}

// Restore загружает сохраненную сессию и устанавливает токен в клиент
func (s *Service) Restore(ctx context.Context) (*storage.AuthData, error) {
	authData, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if authData.ServerURL != s.serverURL {
		return nil, fmt.Errorf("%w: %s", ErrServerMismatch, authData.ServerURL)
	}

	if s.now().Unix() >= authData.ExpiresAt {
		return nil, ErrSessionExpired
	}

	s.client.SetToken(authData.AccessToken)
	return authData, nil
}

// Logout удаляет локальную сессию.
// Токен без состояния на сервере, поэтому уведомлять сервер не нужно.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	s.client.SetToken("")
	return nil
}
