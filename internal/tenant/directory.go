package tenant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
)

// HubConfig describes the cloud hub mapped to a single tenant.
//
// Each tenant is paired with exactly one hub. The connection string
// carries the hub endpoint and shared-access credentials; the two
// toggles gate event propagation per direction.
type HubConfig struct {
	// Name is the hub identifier used in device addresses and
	// change-feed events. Matching is case-insensitive.
	Name string

	// ConnectionString is the hub's shared-access connection string.
	ConnectionString string

	// LocalToHub enables propagation of local registry events to the hub.
	LocalToHub bool

	// HubToLocal enables propagation of hub change-feed events to the
	// local registry.
	HubToLocal bool
}

// entry pairs a tenant key with its hub configuration.
type entry struct {
	tenant string
	cfg    HubConfig
}

// Directory resolves tenants to hubs and hubs back to tenants.
//
// All lookups are case-insensitive: tenant keys and hub names are
// folded to lower case at construction. The directory is immutable
// after NewDirectory returns and safe for concurrent use.
type Directory struct {
	byTenant map[string]entry
	byHub    map[string]entry
}

// NewDirectory builds a Directory from the configured tenant map.
//
// Construction fails if two tenants claim the same hub name (compared
// case-insensitively), since a change-feed event carries only the hub
// name and an ambiguous mapping would make tenant resolution unsafe.
//
// Parameters:
//   - tenants: Tenant configurations keyed by tenant name
//
// Returns:
//   - *Directory: Immutable lookup structure
//   - error: If a hub name is mapped by more than one tenant
func NewDirectory(tenants map[string]config.Tenant) (*Directory, error) {
	d := &Directory{
		byTenant: make(map[string]entry, len(tenants)),
		byHub:    make(map[string]entry, len(tenants)),
	}

	for name, tc := range tenants {
		e := entry{
			tenant: name,
			cfg: HubConfig{
				Name:             tc.HubName,
				ConnectionString: tc.ConnectionString,
				LocalToHub:       tc.LocalToHubEnabled(),
				HubToLocal:       tc.HubToLocalEnabled(),
			},
		}

		hubKey := strings.ToLower(tc.HubName)
		if prev, exists := d.byHub[hubKey]; exists {
			return nil, fmt.Errorf("tenant: hub %q already mapped to tenant %q", tc.HubName, prev.tenant)
		}

		d.byTenant[strings.ToLower(name)] = e
		d.byHub[hubKey] = e
	}

	return d, nil
}

// ConfigFor returns the hub configuration for a tenant.
//
// The lookup is case-insensitive.
//
// Returns:
//   - HubConfig: The tenant's hub configuration
//   - bool: false if the tenant is not configured
func (d *Directory) ConfigFor(tenant string) (HubConfig, bool) {
	e, ok := d.byTenant[strings.ToLower(tenant)]
	if !ok {
		return HubConfig{}, false
	}
	return e.cfg, true
}

// TenantFor resolves a hub name back to the tenant that owns it.
//
// The lookup is case-insensitive. Used by the reverse synchronizer to
// route change-feed events, which carry only the hub name.
//
// Returns:
//   - string: The owning tenant's configured name
//   - HubConfig: That tenant's hub configuration
//   - bool: false if no tenant maps the hub
func (d *Directory) TenantFor(hubName string) (string, HubConfig, bool) {
	e, ok := d.byHub[strings.ToLower(hubName)]
	if !ok {
		return "", HubConfig{}, false
	}
	return e.tenant, e.cfg, true
}

// Tenants returns all configured tenant names, sorted.
//
// The scheduler iterates this list for per-tenant attribute polling;
// sorting keeps pass order deterministic.
func (d *Directory) Tenants() []string {
	names := make([]string, 0, len(d.byTenant))
	for _, e := range d.byTenant {
		names = append(names, e.tenant)
	}
	sort.Strings(names)
	return names
}
