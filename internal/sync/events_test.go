package sync

import (
	"errors"
	"testing"
)

func TestDecodeBatch(t *testing.T) {
	payload := []byte(`[
		{"eventType": "Microsoft.Devices.DeviceCreated",
		 "data": {"deviceId": "ctrl-01", "hubName": "hub-one"},
		 "eventTime": "2026-08-20T10:00:00Z"},
		{"eventType": "Microsoft.Devices.DeviceDeleted",
		 "data": {"deviceId": "ctrl-02", "hubName": "hub-one"}}
	]`)

	events, dropped, err := DecodeBatch(payload)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].EventType != EventDeviceCreated || events[0].Data.DeviceID != "ctrl-01" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].EventType != EventDeviceDeleted || events[1].Data.HubName != "hub-one" {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestDecodeBatchDropsInvalidEvents(t *testing.T) {
	payload := []byte(`[
		{"eventType": "", "data": {"deviceId": "a", "hubName": "h"}},
		{"eventType": "Microsoft.Devices.DeviceConnected", "data": {"deviceId": "", "hubName": "h"}},
		{"eventType": "Microsoft.Devices.DeviceConnected", "data": {"deviceId": "b", "hubName": ""}},
		{"eventType": "Microsoft.Devices.DeviceConnected", "data": {"deviceId": "c", "hubName": "h"}}
	]`)

	events, dropped, err := DecodeBatch(payload)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if len(events) != 1 || events[0].Data.DeviceID != "c" {
		t.Errorf("events = %+v, want only ctrl c", events)
	}
}

func TestDecodeBatchUnparsablePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "not-json"},
		{"object instead of array", `{"eventType": "x"}`},
		{"empty payload", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeBatch([]byte(tt.payload))
			if !errors.Is(err, ErrInvalidBatch) {
				t.Errorf("DecodeBatch(%q) error = %v, want ErrInvalidBatch", tt.payload, err)
			}
		})
	}
}

func TestValidateUnknownTypeStillValid(t *testing.T) {
	e := ChangeEvent{
		EventType: "Microsoft.Devices.DeviceTelemetry",
		Data:      EventData{DeviceID: "ctrl-01", HubName: "hub-one"},
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for unknown but complete event", err)
	}
}

func TestIsForeign(t *testing.T) {
	tests := []struct {
		name    string
		self    string
		tag     string
		foreign bool
	}{
		{"own event", "instance-a", "instance-a", false},
		{"other instance", "instance-a", "instance-b", true},
		{"missing tag fails open", "instance-a", "", false},
		{"unknown self fails open", "", "instance-b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewInstanceOrigin(tt.self)
			if got := o.IsForeign(tt.tag); got != tt.foreign {
				t.Errorf("IsForeign(%q) = %v, want %v", tt.tag, got, tt.foreign)
			}
		})
	}
}
