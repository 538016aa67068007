package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/registry"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
)

// ReverseSynchronizer applies hub change-feed batches to the local
// registry.
//
// Batches arrive as arrays of events, possibly spanning several hubs.
// Events are grouped by hub (order within a group preserved), the hub
// resolved to its owning tenant, and each event applied with the tenant
// passed explicitly. One failing event never aborts the rest of its
// batch.
type ReverseSynchronizer struct {
	gateway   registry.Gateway
	directory TenantDirectory
	hubs      HubClients
	announce  EventAnnouncer
	rec       Recorder
	log       *logging.Logger
}

// NewReverseSynchronizer wires a ReverseSynchronizer. The announcer
// publishes the resulting local mutations back on the bus so other bus
// participants see them; nil disables announcing.
func NewReverseSynchronizer(gateway registry.Gateway, directory TenantDirectory, hubs HubClients, announce EventAnnouncer, rec Recorder, log *logging.Logger) *ReverseSynchronizer {
	return &ReverseSynchronizer{
		gateway:   gateway,
		directory: directory,
		hubs:      hubs,
		announce:  announce,
		rec:       rec,
		log:       log.With("component", "reverse_sync"),
	}
}

// HandleBusMessage decodes one change-feed payload and processes it.
func (r *ReverseSynchronizer) HandleBusMessage(ctx context.Context, payload []byte) {
	events, dropped, err := DecodeBatch(payload)
	if err != nil {
		r.log.Warn("undecodable change-feed batch", "error", err)
		return
	}
	if dropped > 0 {
		r.log.Warn("dropped invalid change-feed events", "dropped", dropped)
	}
	r.ProcessBatch(ctx, events)
}

// ProcessBatch applies a batch of change-feed events.
func (r *ReverseSynchronizer) ProcessBatch(ctx context.Context, events []ChangeEvent) {
	for _, group := range groupByHub(events) {
		tenantName, cfg, ok := r.directory.TenantFor(group.hub)
		if !ok {
			r.log.Warn("change-feed events for unmapped hub, skipping",
				"hub", group.hub,
				"events", len(group.events))
			continue
		}
		if !cfg.HubToLocal {
			r.log.Debug("hub-to-local disabled",
				"tenant", tenantName,
				"hub", group.hub)
			continue
		}

		for _, event := range group.events {
			if err := r.apply(ctx, tenantName, cfg, event); err != nil {
				r.log.Error("applying change-feed event failed",
					"tenant", tenantName,
					"event_type", event.EventType,
					"device_id", event.Data.DeviceID,
					"error", err)
				r.record(tenantName, event.EventType, false)
				continue
			}
			r.record(tenantName, event.EventType, true)
		}
	}
}

// hubGroup is the events of one hub, batch order preserved.
type hubGroup struct {
	hub    string
	events []ChangeEvent
}

// groupByHub splits a batch per hub, keeping first-seen hub order and
// per-hub event order. Hub names differing only in case share a group.
func groupByHub(events []ChangeEvent) []hubGroup {
	var groups []hubGroup
	index := make(map[string]int)

	for _, e := range events {
		key := strings.ToLower(e.Data.HubName)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, hubGroup{hub: e.Data.HubName})
		}
		groups[i].events = append(groups[i].events, e)
	}
	return groups
}

// apply routes one event to its handler.
func (r *ReverseSynchronizer) apply(ctx context.Context, tenantName string, cfg tenant.HubConfig, event ChangeEvent) error {
	switch event.EventType {
	case EventDeviceCreated:
		return r.applyCreated(ctx, tenantName, cfg, event.Data.DeviceID)
	case EventDeviceConnected:
		return r.applyConnected(ctx, tenantName, cfg, event.Data.DeviceID)
	case EventDeviceDeleted:
		return r.applyDeleted(ctx, tenantName, cfg, event.Data.DeviceID)
	default:
		r.log.Debug("ignoring change-feed event type",
			"tenant", tenantName,
			"event_type", event.EventType)
		return nil
	}
}

// applyCreated registers a hub-born device locally.
//
// The hub is authoritative for the credential, so the primary key is
// fetched from the hub identity rather than invented locally. The event
// then falls through to the connected handling, which flags the device
// for twin attribute polling.
func (r *ReverseSynchronizer) applyCreated(ctx context.Context, tenantName string, cfg tenant.HubConfig, deviceID string) error {
	exists, err := r.gateway.ExistsByControllerID(ctx, tenantName, deviceID)
	if err != nil {
		return fmt.Errorf("checking device: %w", err)
	}

	if !exists {
		client, ok := r.hubs.ClientFor(tenantName)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoHubClient, tenantName)
		}

		hubDevice, err := client.GetDevice(ctx, deviceID)
		if err != nil {
			if errors.Is(err, hub.ErrDeviceNotFound) {
				// Gone again before we caught up; the deletion event
				// will follow.
				r.log.Debug("created device already gone from hub",
					"tenant", tenantName,
					"device_id", deviceID)
				return nil
			}
			return fmt.Errorf("fetching hub identity: %w", err)
		}

		err = r.gateway.Create(ctx, tenantName, deviceID,
			registry.HubAddress(cfg.Name),
			hubDevice.Authentication.SymmetricKey.PrimaryKey)
		if err != nil {
			return fmt.Errorf("creating device: %w", err)
		}
		r.log.Info("hub device registered locally",
			"tenant", tenantName,
			"device_id", deviceID,
			"hub", cfg.Name)

		if r.announce != nil {
			if err := r.announce.DeviceCreated(tenantName, deviceID); err != nil {
				r.log.Warn("announcing device creation failed",
					"tenant", tenantName,
					"device_id", deviceID,
					"error", err)
			}
		}
	}

	return r.applyConnected(ctx, tenantName, cfg, deviceID)
}

// applyConnected upserts the local record and requests a twin attribute
// refresh. Both steps are idempotent, so replays and redundant
// instances converge on the same row.
func (r *ReverseSynchronizer) applyConnected(ctx context.Context, tenantName string, cfg tenant.HubConfig, deviceID string) error {
	if err := r.gateway.Create(ctx, tenantName, deviceID, registry.HubAddress(cfg.Name), ""); err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	if err := r.gateway.RequestAttributes(ctx, tenantName, deviceID); err != nil {
		return fmt.Errorf("requesting attributes: %w", err)
	}
	return nil
}

// applyDeleted removes the local record if it exists. Only a device
// paired to a different hub is left alone; an unpaired (locally born)
// device is still deleted, since the hub feed is authoritative for
// its tenant.
func (r *ReverseSynchronizer) applyDeleted(ctx context.Context, tenantName string, cfg tenant.HubConfig, deviceID string) error {
	device, err := r.gateway.GetByControllerID(ctx, tenantName, deviceID)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			r.log.Debug("deleted device already absent locally",
				"tenant", tenantName,
				"device_id", deviceID)
			return nil
		}
		return fmt.Errorf("loading device: %w", err)
	}

	hubName, paired := registry.HubFromAddress(device.Address)
	if paired && !strings.EqualFold(hubName, cfg.Name) {
		r.log.Warn("hub deletion names a device paired to another hub, refusing",
			"tenant", tenantName,
			"device_id", deviceID,
			"address", device.Address,
			"hub", cfg.Name)
		return nil
	}

	if err := r.gateway.DeleteByControllerID(ctx, tenantName, deviceID); err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			return nil
		}
		return fmt.Errorf("deleting device: %w", err)
	}
	r.log.Info("hub-deleted device removed locally",
		"tenant", tenantName,
		"device_id", deviceID,
		"hub", cfg.Name)

	if r.announce != nil {
		if err := r.announce.DeviceDeleted(tenantName, deviceID, device.Address); err != nil {
			r.log.Warn("announcing device deletion failed",
				"tenant", tenantName,
				"device_id", deviceID,
				"error", err)
		}
	}
	return nil
}

func (r *ReverseSynchronizer) record(tenantName string, eventType string, ok bool) {
	if r.rec != nil {
		r.rec.WriteSyncEvent("reverse", tenantName, eventType, ok)
	}
}
