package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/registry"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")
}

func testDirectory(t *testing.T, tenants map[string]config.Tenant) *tenant.Directory {
	t.Helper()
	d, err := tenant.NewDirectory(tenants)
	if err != nil {
		t.Fatalf("tenant.NewDirectory() error = %v", err)
	}
	return d
}

// mockGateway is an in-memory registry.Gateway.
type mockGateway struct {
	mu      sync.Mutex
	devices map[string]*registry.Device // tenant+"/"+controllerID
	failAll error                       // when set, every call errors
}

func newMockGateway() *mockGateway {
	return &mockGateway{devices: make(map[string]*registry.Device)}
}

func (m *mockGateway) key(tenant, id string) string { return tenant + "/" + id }

func (m *mockGateway) put(tenant, id, address, token string, requested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[m.key(tenant, id)] = &registry.Device{
		Tenant:              tenant,
		ControllerID:        id,
		Address:             address,
		SecurityToken:       token,
		Attributes:          make(map[string]string),
		AttributesRequested: requested,
	}
}

func (m *mockGateway) get(tenant, id string) *registry.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices[m.key(tenant, id)]
}

func (m *mockGateway) ExistsByControllerID(_ context.Context, tenant, id string) (bool, error) {
	if m.failAll != nil {
		return false, m.failAll
	}
	return m.get(tenant, id) != nil, nil
}

func (m *mockGateway) GetByControllerID(_ context.Context, tenant, id string) (*registry.Device, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	d := m.get(tenant, id)
	if d == nil {
		return nil, registry.ErrDeviceNotFound
	}
	return d, nil
}

func (m *mockGateway) Create(_ context.Context, tenant, id, address, token string) error {
	if m.failAll != nil {
		return m.failAll
	}
	if m.get(tenant, id) != nil {
		return nil
	}
	m.put(tenant, id, address, token, true)
	return nil
}

func (m *mockGateway) DeleteByControllerID(_ context.Context, tenant, id string) error {
	if m.failAll != nil {
		return m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(tenant, id)
	if _, ok := m.devices[k]; !ok {
		return registry.ErrDeviceNotFound
	}
	delete(m.devices, k)
	return nil
}

func (m *mockGateway) MergeAttributes(_ context.Context, tenant, id string, attrs map[string]string) error {
	if m.failAll != nil {
		return m.failAll
	}
	d := m.get(tenant, id)
	if d == nil {
		return registry.ErrDeviceNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range attrs {
		d.Attributes[k] = v
	}
	d.AttributesRequested = false
	return nil
}

func (m *mockGateway) RequestAttributes(_ context.Context, tenant, id string) error {
	if m.failAll != nil {
		return m.failAll
	}
	d := m.get(tenant, id)
	if d == nil {
		return registry.ErrDeviceNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d.AttributesRequested = true
	return nil
}

func (m *mockGateway) PageDevicesWithAttributesRequested(_ context.Context, tenant string, pageSize int) ([]string, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.devices {
		if d.Tenant == tenant && d.AttributesRequested && len(ids) < pageSize {
			ids = append(ids, d.ControllerID)
		}
	}
	return ids, nil
}

// mockHub is an in-memory HubClient.
type mockHub struct {
	mu       sync.Mutex
	devices  map[string]*hub.Device
	reported map[string]map[string]interface{}
	creates  int
	deletes  int
	failAll  error
}

func newMockHub() *mockHub {
	return &mockHub{
		devices:  make(map[string]*hub.Device),
		reported: make(map[string]map[string]interface{}),
	}
}

func (m *mockHub) seed(id, primaryKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[id] = &hub.Device{
		DeviceID: id,
		Status:   "enabled",
		Authentication: hub.Authentication{
			Type:         "sas",
			SymmetricKey: hub.SymmetricKey{PrimaryKey: primaryKey, SecondaryKey: primaryKey},
		},
	}
}

func (m *mockHub) CreateDevice(_ context.Context, id, primaryKey, secondaryKey string) (*hub.Device, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, ok := m.devices[id]; ok {
		return nil, fmt.Errorf("%w: %s", hub.ErrDeviceExists, id)
	}
	d := &hub.Device{
		DeviceID: id,
		Status:   "enabled",
		Authentication: hub.Authentication{
			Type:         "sas",
			SymmetricKey: hub.SymmetricKey{PrimaryKey: primaryKey, SecondaryKey: secondaryKey},
		},
	}
	m.devices[id] = d
	return d, nil
}

func (m *mockHub) GetDevice(_ context.Context, id string) (*hub.Device, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", hub.ErrDeviceNotFound, id)
	}
	return d, nil
}

func (m *mockHub) DeleteDevice(_ context.Context, id string) error {
	if m.failAll != nil {
		return m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("%w: %s", hub.ErrDeviceNotFound, id)
	}
	delete(m.devices, id)
	return nil
}

func (m *mockHub) GetReportedProperties(_ context.Context, id string) (map[string]interface{}, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.reported[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", hub.ErrDeviceNotFound, id)
	}
	return props, nil
}

// mockAnnouncer captures bus announcements.
type mockAnnouncer struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (m *mockAnnouncer) DeviceCreated(tenant, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, tenant+"/"+id)
	return nil
}

func (m *mockAnnouncer) DeviceDeleted(tenant, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, tenant+"/"+id)
	return nil
}

// mockRecorder captures WriteSyncEvent calls.
type mockRecorder struct {
	mu     sync.Mutex
	events []string // direction/tenant/type/result
}

func (m *mockRecorder) WriteSyncEvent(direction, tenant, eventType string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, fmt.Sprintf("%s/%s/%s/%t", direction, tenant, eventType, ok))
}
