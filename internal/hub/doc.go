// Package hub implements the REST client for cloud device-twin hubs.
//
// Each tenant's hub is reached through its own Client, constructed from
// the connection string in tenant configuration. The client covers the
// registry operations the synchronizers need:
//
//   - CreateDevice / GetDevice / DeleteDevice for identity lifecycle
//   - GetReportedProperties for device-twin attribute polling
//
// Requests authenticate with shared-access-signature tokens minted from
// the connection string's signing key. Not-found and already-exists
// responses surface as the sentinel errors ErrDeviceNotFound and
// ErrDeviceExists so callers can treat them as benign where the sync
// rules allow.
package hub
