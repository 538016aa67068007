package mqtt

import "fmt"

// Topic prefixes for the twinbridge bus.
//
// Local registry change notifications and the hub change feed both ride the
// same broker:
//
//	twinbridge/registry/event/{kind}   local registry change notifications
//	twinbridge/hub/events              hub change-feed batches
//	twinbridge/system/status           instance online/offline status
const (
	// TopicPrefix is the base for all twinbridge topics.
	TopicPrefix = "twinbridge"

	// TopicPrefixRegistry is the base for local registry event topics.
	TopicPrefixRegistry = "twinbridge/registry"

	// TopicPrefixHub is the base for hub change-feed topics.
	TopicPrefixHub = "twinbridge/hub"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "twinbridge/system"
)

// Registry event kinds used as the last topic segment.
const (
	// EventKindCreated is published when a device is created locally.
	EventKindCreated = "created"

	// EventKindDeleted is published when a device is deleted locally.
	EventKindDeleted = "deleted"

	// EventKindAttributesRequested is published when a device asks for an
	// attribute refresh.
	EventKindAttributesRequested = "attributes-requested"
)

// Topics provides builders for twinbridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.RegistryEvent(mqtt.EventKindCreated)
//	// Returns: "twinbridge/registry/event/created"
type Topics struct{}

// RegistryEvent returns the topic for one local registry event kind.
//
// Example: twinbridge/registry/event/created
func (Topics) RegistryEvent(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixRegistry, kind)
}

// AllRegistryEvents returns the wildcard pattern matching every local
// registry event kind.
//
// Example: twinbridge/registry/event/+
func (Topics) AllRegistryEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixRegistry)
}

// HubEvents returns the topic the hub change-feed batches are delivered on.
//
// Example: twinbridge/hub/events
func (Topics) HubEvents() string {
	return fmt.Sprintf("%s/events", TopicPrefixHub)
}

// SystemStatus returns the instance online/offline status topic.
//
// Example: twinbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
