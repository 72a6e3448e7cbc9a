// Package storage describes what the console keeps on disk between runs.
package storage

import "errors"

var (
	// ErrAuthNotFound означает, что оператор не входил или вышел
	ErrAuthNotFound = errors.New("no operator session saved")

	// ErrSnapshotNotFound означает, что топик ни разу не кэшировался
	ErrSnapshotNotFound = errors.New("cached snapshot not found")

	// ErrStorageClosed возвращается после Close
	ErrStorageClosed = errors.New("storage is closed")
)
