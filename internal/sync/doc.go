// Package sync keeps the local device registry and the tenants' cloud
// hubs eventually consistent.
//
// Two synchronizers cover the two directions:
//
//   - ForwardSynchronizer consumes local registry notifications from the
//     bus and mirrors this instance's own changes outward: new devices
//     become hub identities, attribute requests trigger a twin sync,
//     deletions remove the hub identity. Foreign-origin events (changes
//     another instance made) are ignored so redundant instances never
//     double-propagate.
//
//   - ReverseSynchronizer applies hub change-feed batches inward:
//     hub-created devices are registered locally with the hub's own
//     credential, connections upsert the record and request a twin
//     attribute refresh, hub deletions remove the local record.
//
// Every operation takes its tenant explicitly; there is no ambient
// tenant context. Per-event failures are logged and isolated —
// eventual consistency comes from idempotent operations plus the
// periodic attribute polling, not from retries.
package sync
