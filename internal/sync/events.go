package sync

import (
	"encoding/json"
	"fmt"
)

// Change-feed event types delivered by the hub.
const (
	// EventDeviceCreated signals a new device identity in the hub.
	EventDeviceCreated = "Microsoft.Devices.DeviceCreated"

	// EventDeviceConnected signals a device connecting to the hub.
	EventDeviceConnected = "Microsoft.Devices.DeviceConnected"

	// EventDeviceDeleted signals a device identity removed from the hub.
	EventDeviceDeleted = "Microsoft.Devices.DeviceDeleted"
)

// ChangeEvent is one entry of a hub change-feed batch.
type ChangeEvent struct {
	EventType string    `json:"eventType"`
	Data      EventData `json:"data"`
}

// EventData identifies the device and hub an event refers to.
type EventData struct {
	DeviceID string `json:"deviceId"`
	HubName  string `json:"hubName"`
}

// Validate checks the fields every event must carry. Events of unknown
// types still validate; routing decides what to do with them.
func (e ChangeEvent) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("%w: missing eventType", ErrInvalidEvent)
	}
	if e.Data.DeviceID == "" {
		return fmt.Errorf("%w: missing data.deviceId", ErrInvalidEvent)
	}
	if e.Data.HubName == "" {
		return fmt.Errorf("%w: missing data.hubName", ErrInvalidEvent)
	}
	return nil
}

// DecodeBatch parses a change-feed payload into its valid events.
//
// The feed delivers a JSON array. Individual events missing required
// fields are dropped (counted in dropped) without failing the batch;
// only an unparsable payload is an error.
//
// Returns:
//   - []ChangeEvent: The valid events, feed order preserved
//   - int: Number of invalid events dropped
//   - error: If the payload is not a JSON array of objects
func DecodeBatch(payload []byte) ([]ChangeEvent, int, error) {
	var raw []ChangeEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}

	events := make([]ChangeEvent, 0, len(raw))
	dropped := 0
	for _, e := range raw {
		if e.Validate() != nil {
			dropped++
			continue
		}
		events = append(events, e)
	}
	return events, dropped, nil
}
