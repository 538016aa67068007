package twin

import (
	"context"
	"errors"
	"testing"

	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")
}

// mockReader serves canned reported properties.
type mockReader struct {
	reported map[string]interface{}
	err      error
	calls    int
}

func (m *mockReader) GetReportedProperties(_ context.Context, _ string) (map[string]interface{}, error) {
	m.calls++
	return m.reported, m.err
}

// mockStore records merge calls against an in-memory device set.
type mockStore struct {
	devices   map[string]bool // controllerID -> exists
	merged    map[string]map[string]string
	flagged   []string
	mergeErr  error
	existsErr error
}

func newMockStore(ids ...string) *mockStore {
	devices := make(map[string]bool, len(ids))
	for _, id := range ids {
		devices[id] = true
	}
	return &mockStore{
		devices: devices,
		merged:  make(map[string]map[string]string),
		flagged: ids,
	}
}

func (m *mockStore) ExistsByControllerID(_ context.Context, _ string, id string) (bool, error) {
	return m.devices[id], m.existsErr
}

func (m *mockStore) MergeAttributes(_ context.Context, _ string, id string, attrs map[string]string) error {
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.merged[id] = attrs
	return nil
}

func (m *mockStore) PageDevicesWithAttributesRequested(_ context.Context, _ string, pageSize int) ([]string, error) {
	if len(m.flagged) > pageSize {
		return m.flagged[:pageSize], nil
	}
	return m.flagged, nil
}

func TestSyncMergesFlattenedAttributes(t *testing.T) {
	store := newMockStore("ctrl-01")
	reader := &mockReader{reported: map[string]interface{}{
		"firmware": map[string]interface{}{"version": "1.4.2"},
		"rssi":     -67.0,
	}}
	s := NewSyncer(store, testLogger())

	if err := s.Sync(context.Background(), reader, "tenant1", "ctrl-01"); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	attrs := store.merged["ctrl-01"]
	if attrs == nil {
		t.Fatal("MergeAttributes was not called")
	}
	if attrs["azureiot#firmware#version"] != "1.4.2" {
		t.Errorf("merged attrs = %v, missing azureiot#firmware#version", attrs)
	}
	if attrs["azureiot#rssi"] != "-67.0" {
		t.Errorf("merged attrs = %v, want azureiot#rssi = -67.0", attrs)
	}
}

func TestSyncEmptyReportedIsNoOp(t *testing.T) {
	store := newMockStore("ctrl-01")
	reader := &mockReader{reported: map[string]interface{}{}}
	s := NewSyncer(store, testLogger())

	if err := s.Sync(context.Background(), reader, "tenant1", "ctrl-01"); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(store.merged) != 0 {
		t.Errorf("MergeAttributes called for empty reported properties: %v", store.merged)
	}
}

func TestSyncMissingLocalDeviceIsNoOp(t *testing.T) {
	store := newMockStore() // no devices
	reader := &mockReader{reported: map[string]interface{}{"k": "v"}}
	s := NewSyncer(store, testLogger())

	if err := s.Sync(context.Background(), reader, "tenant1", "ghost"); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(store.merged) != 0 {
		t.Error("Sync() merged attributes for a device absent locally")
	}
}

func TestSyncMissingTwinIsNoOp(t *testing.T) {
	store := newMockStore("ctrl-01")
	reader := &mockReader{err: hub.ErrDeviceNotFound}
	s := NewSyncer(store, testLogger())

	if err := s.Sync(context.Background(), reader, "tenant1", "ctrl-01"); err != nil {
		t.Errorf("Sync() error = %v, want nil for a missing twin", err)
	}
}

func TestSyncPropagatesTransportError(t *testing.T) {
	store := newMockStore("ctrl-01")
	wantErr := errors.New("connection reset")
	reader := &mockReader{err: wantErr}
	s := NewSyncer(store, testLogger())

	err := s.Sync(context.Background(), reader, "tenant1", "ctrl-01")
	if !errors.Is(err, wantErr) {
		t.Errorf("Sync() error = %v, want wrapped %v", err, wantErr)
	}
}
