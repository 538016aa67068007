// Package tenant maps tenants to their cloud hubs.
//
// TwinBridge serves multiple tenants, each paired with exactly one hub.
// The Directory is built once from configuration and answers two
// questions throughout the synchronizers:
//
//   - which hub does this tenant sync against? (ConfigFor)
//   - which tenant owns this hub? (TenantFor, used when routing
//     change-feed events that carry only a hub name)
//
// Both lookups are case-insensitive. Ambiguous mappings (two tenants
// claiming the same hub) are rejected at construction.
package tenant
