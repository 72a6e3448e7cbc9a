package auth

import (
	"context"

	"github.com/iudanet/sitekeeper/pkg/api"
)

//go:generate moq -out authenticator_mock.go . Authenticator

// Authenticator is the part of the HTTP client the session service needs.
type Authenticator interface {
	// Login обменивает имя и пароль оператора на access token
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// SetToken устанавливает токен для последующих запросов
	SetToken(token string)
}
