package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/mqtt"
)

// LocalEvent is a local registry change notification on the bus.
//
// Every event carries the publishing instance's identity as Origin so
// that subscribers can apply the origin filter: an instance forwards
// only the changes it made itself.
type LocalEvent struct {
	// Origin is the instance id of the process that made the change.
	Origin string `json:"origin"`

	// Tenant owning the changed device.
	Tenant string `json:"tenant"`

	// ControllerID of the changed device.
	ControllerID string `json:"controller_id"`

	// Address is the device's pairing address. Carried on deleted
	// events, where the registry row is already gone by the time
	// subscribers see the event.
	Address string `json:"address,omitempty"`

	// At is when the change was published.
	At time.Time `json:"at"`
}

// busPublisher is the bus capability the publisher needs.
// Implemented by mqtt.Client.
type busPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher announces local registry changes on the bus.
type EventPublisher struct {
	bus    busPublisher
	origin string
	topics mqtt.Topics
	log    *logging.Logger
}

// NewEventPublisher builds a publisher stamping events with origin,
// the owning instance's identity.
func NewEventPublisher(bus busPublisher, origin string, log *logging.Logger) *EventPublisher {
	return &EventPublisher{
		bus:    bus,
		origin: origin,
		log:    log.With("component", "registry_events"),
	}
}

// DeviceCreated publishes a device-created notification.
func (p *EventPublisher) DeviceCreated(tenant string, controllerID string) error {
	return p.publish(mqtt.EventKindCreated, tenant, controllerID, "")
}

// DeviceDeleted publishes a device-deleted notification. The deleted
// device's address rides along since the row no longer exists.
func (p *EventPublisher) DeviceDeleted(tenant string, controllerID string, address string) error {
	return p.publish(mqtt.EventKindDeleted, tenant, controllerID, address)
}

// AttributesRequested publishes an attribute-refresh notification.
func (p *EventPublisher) AttributesRequested(tenant string, controllerID string) error {
	return p.publish(mqtt.EventKindAttributesRequested, tenant, controllerID, "")
}

func (p *EventPublisher) publish(kind string, tenant string, controllerID string, address string) error {
	event := LocalEvent{
		Origin:       p.origin,
		Tenant:       tenant,
		ControllerID: controllerID,
		Address:      address,
		At:           time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", kind, err)
	}

	topic := p.topics.RegistryEvent(kind)
	if err := p.bus.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("publishing %s event: %w", kind, err)
	}

	p.log.Debug("registry event published",
		"kind", kind,
		"tenant", tenant,
		"controller_id", controllerID)
	return nil
}
