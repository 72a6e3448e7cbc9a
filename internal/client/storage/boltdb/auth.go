package boltdb

import (
	"context"

	"github.com/iudanet/sitekeeper/internal/client/storage"
)

// в консоли одна сессия оператора
var sessionKey = []byte("session")

// SaveAuth replaces the stored operator session
func (s *Storage) SaveAuth(_ context.Context, auth *storage.AuthData) error {
	return s.putJSON(bucketAuth, sessionKey, auth)
}

// GetAuth returns the stored session or storage.ErrAuthNotFound
func (s *Storage) GetAuth(_ context.Context) (*storage.AuthData, error) {
	var auth storage.AuthData
	if err := s.getJSON(bucketAuth, sessionKey, &auth); err != nil {
		return nil, notFound(err, storage.ErrAuthNotFound)
	}
	return &auth, nil
}

// DeleteAuth removes the stored session (logout)
func (s *Storage) DeleteAuth(_ context.Context) error {
	return notFound(s.deleteKey(bucketAuth, sessionKey), storage.ErrAuthNotFound)
}
