package hub

import "errors"

// Sentinel errors for hub registry operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, hub.ErrDeviceNotFound) {
//	    // Deletion target already gone; treat as success
//	}
var (
	// ErrInvalidConnectionString indicates the configured connection
	// string could not be parsed.
	ErrInvalidConnectionString = errors.New("hub: invalid connection string")

	// ErrDeviceNotFound indicates the hub has no identity with the
	// requested device ID.
	ErrDeviceNotFound = errors.New("hub: device not found")

	// ErrDeviceExists indicates an identity with the requested device ID
	// is already registered.
	ErrDeviceExists = errors.New("hub: device already exists")

	// ErrRequestFailed indicates the hub rejected a request for a reason
	// other than the sentinel cases above.
	ErrRequestFailed = errors.New("hub: request failed")
)
