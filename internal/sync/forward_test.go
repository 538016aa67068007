package sync

import (
	"context"
	"testing"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
	"github.com/twinbridge/twinbridge-core/internal/registry"
	"github.com/twinbridge/twinbridge-core/internal/twin"
)

func boolPtr(v bool) *bool { return &v }

type forwardFixture struct {
	sync    *ForwardSynchronizer
	gateway *mockGateway
	hub     *mockHub
	rec     *mockRecorder
}

func newForwardFixture(t *testing.T, tenants map[string]config.Tenant) *forwardFixture {
	t.Helper()
	log := testLogger()
	gateway := newMockGateway()
	hubClient := newMockHub()
	rec := &mockRecorder{}

	f := NewForwardSynchronizer(
		NewInstanceOrigin("instance-a"),
		gateway,
		testDirectory(t, tenants),
		ClientSet{"tenant1": hubClient},
		twin.NewSyncer(gateway, log),
		rec,
		log,
	)
	return &forwardFixture{sync: f, gateway: gateway, hub: hubClient, rec: rec}
}

func defaultTenants() map[string]config.Tenant {
	return map[string]config.Tenant{
		"tenant1": {HubName: "hub-one", ConnectionString: "cs"},
	}
}

func selfEvent(tenant, id string) registry.LocalEvent {
	return registry.LocalEvent{Origin: "instance-a", Tenant: tenant, ControllerID: id}
}

func TestHandleCreatedMirrorsDevice(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "", "device-secret", false)

	fx.sync.HandleCreated(context.Background(), selfEvent("tenant1", "ctrl-01"))

	created := fx.hub.devices["ctrl-01"]
	if created == nil {
		t.Fatal("device not created in hub")
	}
	key := created.Authentication.SymmetricKey
	if key.PrimaryKey != "device-secret" || key.SecondaryKey != "device-secret" {
		t.Errorf("symmetric key = %+v, want device-secret in both slots", key)
	}
}

func TestHandleCreatedSkipsForeignOrigin(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "", "secret", false)

	event := registry.LocalEvent{Origin: "instance-b", Tenant: "tenant1", ControllerID: "ctrl-01"}
	fx.sync.HandleCreated(context.Background(), event)

	if fx.hub.creates != 0 {
		t.Error("foreign-origin event reached the hub")
	}
}

func TestHandleCreatedMissingOriginFailsOpen(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "", "secret", false)

	event := registry.LocalEvent{Tenant: "tenant1", ControllerID: "ctrl-01"}
	fx.sync.HandleCreated(context.Background(), event)

	if fx.hub.creates != 1 {
		t.Error("event with undeterminable origin was dropped")
	}
}

func TestHandleCreatedSkipsHubPairedDevice(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", registry.HubAddress("hub-one"), "secret", false)

	fx.sync.HandleCreated(context.Background(), selfEvent("tenant1", "ctrl-01"))

	if fx.hub.creates != 0 {
		t.Error("hub-born device was mirrored back to the hub")
	}
}

func TestHandleCreatedRespectsDirectionToggle(t *testing.T) {
	fx := newForwardFixture(t, map[string]config.Tenant{
		"tenant1": {HubName: "hub-one", ConnectionString: "cs", LocalToHub: boolPtr(false)},
	})
	fx.gateway.put("tenant1", "ctrl-01", "", "secret", false)

	fx.sync.HandleCreated(context.Background(), selfEvent("tenant1", "ctrl-01"))

	if fx.hub.creates != 0 {
		t.Error("event forwarded despite local-to-hub being disabled")
	}
}

func TestHandleCreatedUnknownTenant(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant9", "ctrl-01", "", "secret", false)

	fx.sync.HandleCreated(context.Background(), selfEvent("tenant9", "ctrl-01"))

	if fx.hub.creates != 0 {
		t.Error("event for unmapped tenant reached the hub")
	}
}

func TestHandleCreatedExistingHubIdentityIsBenign(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "", "secret", false)
	fx.hub.seed("ctrl-01", "other-key")

	fx.sync.HandleCreated(context.Background(), selfEvent("tenant1", "ctrl-01"))

	// Recorded as success: the goal state (identity exists) is reached.
	if len(fx.rec.events) != 1 || fx.rec.events[0] != "forward/tenant1/created/true" {
		t.Errorf("recorded events = %v, want one forward/tenant1/created/true", fx.rec.events)
	}
}

func TestHandleAttributesRequestedSyncsTwin(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", registry.HubAddress("hub-one"), "secret", true)
	fx.hub.seed("ctrl-01", "key")
	fx.hub.reported["ctrl-01"] = map[string]interface{}{"state": "on"}

	fx.sync.HandleAttributesRequested(context.Background(), selfEvent("tenant1", "ctrl-01"))

	device := fx.gateway.get("tenant1", "ctrl-01")
	if device.Attributes["azureiot#state"] != "on" {
		t.Errorf("attributes = %v, want azureiot#state = on", device.Attributes)
	}
	if device.AttributesRequested {
		t.Error("flag still set after twin sync")
	}
}

func TestHandleAttributesRequestedSkipsUnpairedDevice(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "knx://1.1.4", "secret", true)
	fx.hub.reported["ctrl-01"] = map[string]interface{}{"state": "on"}

	fx.sync.HandleAttributesRequested(context.Background(), selfEvent("tenant1", "ctrl-01"))

	if len(fx.gateway.get("tenant1", "ctrl-01").Attributes) != 0 {
		t.Error("twin sync ran for a device not paired to any hub")
	}
}

func TestHandleAttributesRequestedHubMismatch(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	// Paired to a hub that is not tenant1's configured hub.
	fx.gateway.put("tenant1", "ctrl-01", registry.HubAddress("hub-other"), "secret", true)
	fx.hub.reported["ctrl-01"] = map[string]interface{}{"state": "on"}

	fx.sync.HandleAttributesRequested(context.Background(), selfEvent("tenant1", "ctrl-01"))

	if len(fx.gateway.get("tenant1", "ctrl-01").Attributes) != 0 {
		t.Error("twin sync crossed a hub boundary")
	}
}

func TestHandleDeletedRemovesHubIdentity(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.hub.seed("ctrl-01", "key")

	event := selfEvent("tenant1", "ctrl-01")
	event.Address = registry.HubAddress("hub-one")
	fx.sync.HandleDeleted(context.Background(), event)

	if _, ok := fx.hub.devices["ctrl-01"]; ok {
		t.Error("hub identity survived local deletion")
	}
}

func TestHandleDeletedAbsentHubIdentityIsBenign(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())

	event := selfEvent("tenant1", "ctrl-01")
	event.Address = registry.HubAddress("hub-one")
	fx.sync.HandleDeleted(context.Background(), event)

	if len(fx.rec.events) != 1 || fx.rec.events[0] != "forward/tenant1/deleted/true" {
		t.Errorf("recorded events = %v, want one forward/tenant1/deleted/true", fx.rec.events)
	}
}

func TestHandleDeletedSkipsUnpairedAddress(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.hub.seed("ctrl-01", "key")

	event := selfEvent("tenant1", "ctrl-01")
	event.Address = "knx://1.1.4"
	fx.sync.HandleDeleted(context.Background(), event)

	if fx.hub.deletes != 0 {
		t.Error("deletion forwarded for a device not paired to any hub")
	}
}

func TestHandleBusMessageDispatch(t *testing.T) {
	fx := newForwardFixture(t, defaultTenants())
	fx.gateway.put("tenant1", "ctrl-01", "", "secret", false)

	payload := []byte(`{"origin": "instance-a", "tenant": "tenant1", "controller_id": "ctrl-01"}`)
	fx.sync.HandleBusMessage(context.Background(), "twinbridge/registry/event/created", payload)

	if fx.hub.creates != 1 {
		t.Error("bus message did not reach the created handler")
	}

	// Malformed payloads and unknown kinds are dropped quietly.
	fx.sync.HandleBusMessage(context.Background(), "twinbridge/registry/event/created", []byte("garbage"))
	fx.sync.HandleBusMessage(context.Background(), "twinbridge/registry/event/renamed", payload)
	if fx.hub.creates != 1 {
		t.Error("unexpected additional hub calls")
	}
}
