package sync

import "errors"

// Domain errors for the sync package.
var (
	// ErrInvalidEvent is returned when a change-feed event misses a
	// required field.
	ErrInvalidEvent = errors.New("sync: invalid event")

	// ErrInvalidBatch is returned when a change-feed payload cannot be
	// parsed at all.
	ErrInvalidBatch = errors.New("sync: invalid batch")

	// ErrNoHubClient is returned when a tenant has no hub client wired.
	ErrNoHubClient = errors.New("sync: no hub client for tenant")
)
