package registry

import (
	"strings"
	"time"
)

// AddressScheme marks devices whose lifecycle is mirrored to a cloud
// hub. A device address of the form registryB://<hubName> records which
// hub owns the pairing.
const AddressScheme = "registryB"

// addressPrefix is the rendered scheme prefix.
const addressPrefix = AddressScheme + "://"

// Device is one row of the local device registry.
type Device struct {
	// Tenant owning the device. All lookups are tenant-scoped.
	Tenant string `json:"tenant"`

	// ControllerID uniquely identifies the device within its tenant and
	// doubles as the hub device identity.
	ControllerID string `json:"controller_id"`

	// Address is the device's hub pairing URI (registryB://<hubName>),
	// or empty for devices not mirrored to any hub.
	Address string `json:"address"`

	// SecurityToken is the device's symmetric secret, mirrored into the
	// hub identity at creation.
	SecurityToken string `json:"-"`

	// Attributes is the device's flat attribute map, including twin
	// attributes mirrored under the azureiot# namespace.
	Attributes map[string]string `json:"attributes"`

	// AttributesRequested flags the device for the next twin polling
	// pass. Cleared when a merge succeeds.
	AttributesRequested bool `json:"attributes_requested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HubAddress renders the pairing address for a hub.
func HubAddress(hubName string) string {
	return addressPrefix + hubName
}

// HubFromAddress extracts the hub name from a pairing address.
//
// Returns:
//   - string: The hub name
//   - bool: false if the address does not carry the pairing scheme
func HubFromAddress(address string) (string, bool) {
	if !IsHubOwned(address) {
		return "", false
	}
	return address[len(addressPrefix):], true
}

// IsHubOwned reports whether the address marks a hub-mirrored device.
// The scheme comparison is case-insensitive; the hub name keeps its case.
func IsHubOwned(address string) bool {
	return len(address) > len(addressPrefix) &&
		strings.EqualFold(address[:len(addressPrefix)], addressPrefix)
}
