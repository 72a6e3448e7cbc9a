package models

import "errors"

// Error kinds shared by the console engine, its persistence port and the backend.
var (
	// ErrAlreadyEditing indicates that an edit session already exists for the key
	ErrAlreadyEditing = errors.New("record is already being edited")

	// ErrInvalidPath indicates that a field path does not address an existing location
	ErrInvalidPath = errors.New("invalid field path")

	// ErrInvalidValue indicates that a value is not a scalar
	ErrInvalidValue = errors.New("invalid field value")

	// ErrVersionConflict indicates that the expected version is stale
	ErrVersionConflict = errors.New("version conflict")

	// ErrTimeout indicates that a backend call did not finish in time
	ErrTimeout = errors.New("backend call timed out")

	// ErrTransport indicates a change feed transport failure
	ErrTransport = errors.New("change feed transport error")

	// ErrPersistence indicates a generic backend read/write failure
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound indicates that the record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrNotEditing indicates that no edit session exists for the key
	ErrNotEditing = errors.New("record is not being edited")

	// ErrSaveInProgress indicates that the session is already saving
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrNothingToSave indicates that the draft has no changes
	ErrNothingToSave = errors.New("draft has no changes")

	// ErrRemoteDeleted indicates that the record was deleted on the backend during the edit
	ErrRemoteDeleted = errors.New("record was deleted remotely")

	// ErrNotRemoteDeleted indicates a resurrect request for a record that still exists on the backend
	ErrNotRemoteDeleted = errors.New("record was not deleted remotely")
)
