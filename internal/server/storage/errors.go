package storage

import "errors"

// Common storage errors
var (
	// ErrOperatorNotFound indicates that operator was not found in storage
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrOperatorAlreadyExists indicates that operator with this username already exists
	ErrOperatorAlreadyExists = errors.New("operator already exists")

	// ErrRecordNotFound indicates that content record was not found or is deleted
	ErrRecordNotFound = errors.New("record not found")

	// ErrVersionConflict indicates that expected version does not match the stored one
	ErrVersionConflict = errors.New("version conflict")
)
