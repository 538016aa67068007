package twin

import (
	"context"
	"errors"
	"fmt"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
)

// TwinReader fetches the reported properties of one hub device twin.
// Implemented by hub.Client.
type TwinReader interface {
	GetReportedProperties(ctx context.Context, deviceID string) (map[string]interface{}, error)
}

// AttributeStore is the slice of the local registry the twin syncer
// needs: existence checks, attribute merging, and paging of devices
// whose attributes were requested.
type AttributeStore interface {
	ExistsByControllerID(ctx context.Context, tenant string, controllerID string) (bool, error)
	MergeAttributes(ctx context.Context, tenant string, controllerID string, attrs map[string]string) error
	PageDevicesWithAttributesRequested(ctx context.Context, tenant string, pageSize int) ([]string, error)
}

// Syncer copies reported twin properties from a hub into local device
// attributes.
type Syncer struct {
	store AttributeStore
	log   *logging.Logger
}

// NewSyncer builds a Syncer over the given attribute store.
func NewSyncer(store AttributeStore, log *logging.Logger) *Syncer {
	return &Syncer{
		store: store,
		log:   log.With("component", "twin_syncer"),
	}
}

// Sync mirrors one device's reported twin properties into the local
// registry.
//
// The reported document is flattened (see Flatten) and MERGED into the
// device's existing attributes: locally authored attributes survive, and
// twin attributes absent from this snapshot are left untouched. A sync
// never creates a device; if the device vanished locally since it was
// paged, or the hub has no twin for it, the call is a no-op.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - reader: Twin source for the tenant's hub
//   - tenant: Tenant owning the device
//   - controllerID: Device to sync
//
// Returns:
//   - error: Transport or storage failure; absence on either side is nil
func (s *Syncer) Sync(ctx context.Context, reader TwinReader, tenant string, controllerID string) error {
	reported, err := reader.GetReportedProperties(ctx, controllerID)
	if err != nil {
		if errors.Is(err, hub.ErrDeviceNotFound) {
			s.log.Debug("no twin for device, skipping",
				"tenant", tenant,
				"controller_id", controllerID)
			return nil
		}
		return fmt.Errorf("fetch reported properties: %w", err)
	}

	if len(reported) == 0 {
		return nil
	}

	exists, err := s.store.ExistsByControllerID(ctx, tenant, controllerID)
	if err != nil {
		return fmt.Errorf("check device: %w", err)
	}
	if !exists {
		s.log.Debug("device gone from local registry, skipping",
			"tenant", tenant,
			"controller_id", controllerID)
		return nil
	}

	attrs := Flatten(reported)
	if err := s.store.MergeAttributes(ctx, tenant, controllerID, attrs); err != nil {
		return fmt.Errorf("merge attributes: %w", err)
	}

	s.log.Debug("twin attributes merged",
		"tenant", tenant,
		"controller_id", controllerID,
		"attributes", len(attrs))
	return nil
}
