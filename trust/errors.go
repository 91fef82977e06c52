package trust

import "errors"

var (
	// ErrNotInitialized is returned when an operation requires an existing
	// trust state for the namespace and none has been persisted yet.
	ErrNotInitialized = errors.New("trust state not initialized")

	// ErrAlreadyInitialized is returned when initialization or migration is
	// attempted for a namespace that already has a trust state.
	ErrAlreadyInitialized = errors.New("trust state already initialized")

	// ErrOperationNotFound is returned when the referenced operation id is
	// not among the namespace's pending operations.
	ErrOperationNotFound = errors.New("operation not found")
)
