package storage

import "context"

//go:generate moq -out authstorage_mock.go . AuthStorage

// AuthStorage keeps the operator session of the console between runs.
// Срок действия токена проверяет auth.Service, хранилище его не трактует.
type AuthStorage interface {
	// SaveAuth replaces the stored session
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth returns the stored session or ErrAuthNotFound
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes the stored session; ErrAuthNotFound if there is none
	DeleteAuth(ctx context.Context) error
}

// AuthData is the saved operator session: who logged in, where, and until when.
type AuthData struct {
	Username    string `json:"username"`
	ServerURL   string `json:"server_url"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}
