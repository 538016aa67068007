package sync

import (
	"context"
	"strings"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
)

// HubClient is the slice of the hub registry API the synchronizers use.
// Implemented by hub.Client.
type HubClient interface {
	CreateDevice(ctx context.Context, deviceID string, primaryKey string, secondaryKey string) (*hub.Device, error)
	GetDevice(ctx context.Context, deviceID string) (*hub.Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error
	GetReportedProperties(ctx context.Context, deviceID string) (map[string]interface{}, error)
}

// HubClients resolves the hub client for a tenant.
type HubClients interface {
	ClientFor(tenant string) (HubClient, bool)
}

// ClientSet is a static HubClients backed by a map keyed by tenant name.
type ClientSet map[string]HubClient

// ClientFor returns the tenant's hub client. Lookup is case-insensitive,
// matching tenant.Directory semantics.
func (s ClientSet) ClientFor(name string) (HubClient, bool) {
	if c, ok := s[name]; ok {
		return c, true
	}
	for key, c := range s {
		if strings.EqualFold(key, name) {
			return c, true
		}
	}
	return nil, false
}

// TenantDirectory resolves tenants and hubs. Implemented by
// tenant.Directory.
type TenantDirectory interface {
	ConfigFor(name string) (tenant.HubConfig, bool)
	TenantFor(hubName string) (string, tenant.HubConfig, bool)
}

// Recorder receives per-event sync telemetry. Implemented by
// influxdb.Client; nil disables recording.
type Recorder interface {
	WriteSyncEvent(direction string, tenant string, eventType string, ok bool)
}

// EventAnnouncer publishes local registry change notifications on the
// bus. Implemented by registry.EventPublisher; nil disables announcing.
type EventAnnouncer interface {
	DeviceCreated(tenant string, controllerID string) error
	DeviceDeleted(tenant string, controllerID string, address string) error
}
