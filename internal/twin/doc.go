// Package twin mirrors hub device-twin attributes into the local
// registry.
//
// Devices signal interest by setting the attributes-requested flag in
// the local registry. The Scheduler periodically pages flagged devices
// per tenant, fetches each device's reported twin properties from its
// hub, flattens the nested document into namespaced string attributes
// (azureiot#path#to#leaf) and merges them into the device's existing
// attributes. Merging never replaces: locally authored attributes
// survive every sync.
//
// Polling is cluster-coordinated through a named non-blocking lock, so
// with redundant instances exactly one runs each pass and the rest skip
// the tick.
package twin
