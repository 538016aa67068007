package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePollRun records one attribute-sync scheduler pass.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - tenant: Tenant whose devices were polled
//   - synced: Number of devices whose twin attributes were merged
//   - failed: Number of devices that errored during the pass
//   - elapsed: Wall-clock duration of the pass
func (c *Client) WritePollRun(tenant string, synced int, failed int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"attribute_sync",
		map[string]string{
			"tenant": tenant,
		},
		map[string]interface{}{
			"synced":     synced,
			"failed":     failed,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSyncEvent records a single propagated registry event.
//
// Parameters:
//   - direction: "forward" (local registry to hub) or "reverse" (hub to local)
//   - tenant: Tenant the event belongs to
//   - eventType: The event kind (e.g. "created", "deleted")
//   - ok: Whether propagation succeeded
func (c *Client) WriteSyncEvent(direction string, tenant string, eventType string, ok bool) {
	if !c.IsConnected() {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}

	point := write.NewPoint(
		"sync_events",
		map[string]string{
			"direction": direction,
			"tenant":    tenant,
			"event":     eventType,
			"result":    result,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
