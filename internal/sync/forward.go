package sync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/mqtt"
	"github.com/twinbridge/twinbridge-core/internal/registry"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
	"github.com/twinbridge/twinbridge-core/internal/twin"
)

// ForwardSynchronizer propagates local registry changes to the tenants'
// hubs.
//
// It consumes the local change notifications from the bus and mirrors
// them outward: locally created devices become hub identities, attribute
// requests trigger a twin sync, local deletions remove the hub identity.
//
// Only changes this instance made itself are propagated. Events stamped
// with another instance's origin are ignored — each instance forwards
// its own work, so redundant instances never double-propagate. Every
// failure is logged and swallowed; the bus redelivers nothing and the
// periodic twin polling plus idempotent hub operations absorb the gap.
type ForwardSynchronizer struct {
	origin    OriginSource
	gateway   registry.Gateway
	directory TenantDirectory
	hubs      HubClients
	twins     *twin.Syncer
	rec       Recorder
	log       *logging.Logger
}

// NewForwardSynchronizer wires a ForwardSynchronizer.
func NewForwardSynchronizer(origin OriginSource, gateway registry.Gateway, directory TenantDirectory, hubs HubClients, twins *twin.Syncer, rec Recorder, log *logging.Logger) *ForwardSynchronizer {
	return &ForwardSynchronizer{
		origin:    origin,
		gateway:   gateway,
		directory: directory,
		hubs:      hubs,
		twins:     twins,
		rec:       rec,
		log:       log.With("component", "forward_sync"),
	}
}

// HandleBusMessage decodes one local notification and dispatches it by
// its topic kind. Malformed payloads are logged and dropped.
func (f *ForwardSynchronizer) HandleBusMessage(ctx context.Context, topic string, payload []byte) {
	var event registry.LocalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		f.log.Warn("undecodable local event", "topic", topic, "error", err)
		return
	}

	kind := topic[strings.LastIndex(topic, "/")+1:]
	switch kind {
	case mqtt.EventKindCreated:
		f.HandleCreated(ctx, event)
	case mqtt.EventKindAttributesRequested:
		f.HandleAttributesRequested(ctx, event)
	case mqtt.EventKindDeleted:
		f.HandleDeleted(ctx, event)
	default:
		f.log.Debug("unknown local event kind", "topic", topic, "kind", kind)
	}
}

// HandleCreated mirrors a locally created device into the tenant's hub.
//
// Devices already paired to a hub are skipped: their identity originated
// there and creating it again would only race the reverse direction.
func (f *ForwardSynchronizer) HandleCreated(ctx context.Context, event registry.LocalEvent) {
	if f.origin.IsForeign(event.Origin) {
		f.log.Debug("skipping foreign-origin event", "origin", event.Origin)
		return
	}

	cfg, ok := f.directory.ConfigFor(event.Tenant)
	if !ok {
		f.log.Debug("tenant has no hub mapping", "tenant", event.Tenant)
		return
	}
	if !cfg.LocalToHub {
		f.log.Debug("local-to-hub disabled", "tenant", event.Tenant)
		return
	}

	device, err := f.gateway.GetByControllerID(ctx, event.Tenant, event.ControllerID)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			f.log.Debug("device gone before forwarding",
				"tenant", event.Tenant,
				"controller_id", event.ControllerID)
			return
		}
		f.log.Error("loading device failed",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"error", err)
		return
	}
	if registry.IsHubOwned(device.Address) {
		f.log.Debug("device already hub-paired",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"address", device.Address)
		return
	}

	client, ok := f.hubs.ClientFor(event.Tenant)
	if !ok {
		f.log.Error("no hub client", "tenant", event.Tenant)
		return
	}

	// The local security token serves both key slots; the hub insists
	// on two keys while the local registry tracks a single secret.
	_, err = client.CreateDevice(ctx, event.ControllerID, device.SecurityToken, device.SecurityToken)
	switch {
	case errors.Is(err, hub.ErrDeviceExists):
		f.log.Debug("hub identity already present",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID)
	case err != nil:
		f.log.Error("creating hub identity failed",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"error", err)
		f.record(event.Tenant, mqtt.EventKindCreated, false)
		return
	default:
		f.log.Info("device mirrored to hub",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"hub", cfg.Name)
	}
	f.record(event.Tenant, mqtt.EventKindCreated, true)
}

// HandleAttributesRequested runs one twin sync for a hub-paired device.
func (f *ForwardSynchronizer) HandleAttributesRequested(ctx context.Context, event registry.LocalEvent) {
	if f.origin.IsForeign(event.Origin) {
		f.log.Debug("skipping foreign-origin event", "origin", event.Origin)
		return
	}

	device, err := f.gateway.GetByControllerID(ctx, event.Tenant, event.ControllerID)
	if err != nil {
		if !errors.Is(err, registry.ErrDeviceNotFound) {
			f.log.Error("loading device failed",
				"tenant", event.Tenant,
				"controller_id", event.ControllerID,
				"error", err)
		}
		return
	}

	cfg, client, ok := f.resolveHubPairing(event.Tenant, event.ControllerID, device.Address)
	if !ok {
		return
	}
	if !cfg.HubToLocal {
		f.log.Debug("hub-to-local disabled", "tenant", event.Tenant)
		return
	}

	if err := f.twins.Sync(ctx, client, event.Tenant, event.ControllerID); err != nil {
		f.log.Error("twin sync failed",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"error", err)
		f.record(event.Tenant, mqtt.EventKindAttributesRequested, false)
		return
	}
	f.record(event.Tenant, mqtt.EventKindAttributesRequested, true)
}

// HandleDeleted removes the hub identity of a locally deleted device.
//
// The device row is already gone, so the pairing address rides on the
// event itself. A hub identity that is already absent is fine: the goal
// state is reached either way.
func (f *ForwardSynchronizer) HandleDeleted(ctx context.Context, event registry.LocalEvent) {
	if f.origin.IsForeign(event.Origin) {
		f.log.Debug("skipping foreign-origin event", "origin", event.Origin)
		return
	}

	cfg, client, ok := f.resolveHubPairing(event.Tenant, event.ControllerID, event.Address)
	if !ok {
		return
	}
	if !cfg.LocalToHub {
		f.log.Debug("local-to-hub disabled", "tenant", event.Tenant)
		return
	}

	err := client.DeleteDevice(ctx, event.ControllerID)
	switch {
	case errors.Is(err, hub.ErrDeviceNotFound):
		f.log.Debug("hub identity already absent",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID)
	case err != nil:
		f.log.Error("deleting hub identity failed",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"error", err)
		f.record(event.Tenant, mqtt.EventKindDeleted, false)
		return
	default:
		f.log.Info("hub identity deleted",
			"tenant", event.Tenant,
			"controller_id", event.ControllerID,
			"hub", cfg.Name)
	}
	f.record(event.Tenant, mqtt.EventKindDeleted, true)
}

// resolveHubPairing validates that address pairs the device to the
// tenant's own hub and returns the tenant's hub config and client.
//
// A pairing that names a different hub than the tenant's configured one
// is logged at warning level: it can only happen through tampered data
// or a misrouted event, and acting on it would cross tenants.
func (f *ForwardSynchronizer) resolveHubPairing(tenantName string, controllerID string, address string) (tenant.HubConfig, HubClient, bool) {
	hubName, ok := registry.HubFromAddress(address)
	if !ok {
		f.log.Debug("device not hub-paired",
			"tenant", tenantName,
			"controller_id", controllerID,
			"address", address)
		return tenant.HubConfig{}, nil, false
	}

	cfg, ok := f.directory.ConfigFor(tenantName)
	if !ok {
		f.log.Debug("tenant has no hub mapping", "tenant", tenantName)
		return tenant.HubConfig{}, nil, false
	}
	if !strings.EqualFold(hubName, cfg.Name) {
		f.log.Warn("device paired to a different tenant's hub, refusing",
			"tenant", tenantName,
			"controller_id", controllerID,
			"device_hub", hubName,
			"tenant_hub", cfg.Name)
		return tenant.HubConfig{}, nil, false
	}

	client, ok := f.hubs.ClientFor(tenantName)
	if !ok {
		f.log.Error("no hub client", "tenant", tenantName)
		return tenant.HubConfig{}, nil, false
	}
	return cfg, client, true
}

func (f *ForwardSynchronizer) record(tenantName string, kind string, ok bool) {
	if f.rec != nil {
		f.rec.WriteSyncEvent("forward", tenantName, kind, ok)
	}
}
