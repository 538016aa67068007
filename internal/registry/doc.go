// Package registry persists the local device registry.
//
// Devices live in SQLite keyed by (tenant, controller id). A device
// mirrored to a cloud hub carries a pairing address of the form
// registryB://<hubName>; the address is how ownership is decided when
// deletion events arrive. Attribute maps are stored as JSON and only
// ever merged into, never replaced, so locally authored attributes
// survive twin syncs.
//
// Local mutations are announced on the bus through EventPublisher,
// stamped with the instance's origin identity for the origin filter in
// the forward synchronizer.
package registry
