package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a (tenant, controller id) pair
	// does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrInvalidDevice is returned when a tenant or controller id is empty.
	ErrInvalidDevice = errors.New("registry: invalid device")
)
