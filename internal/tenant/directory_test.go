package tenant

import (
	"strings"
	"testing"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
)

func boolPtr(v bool) *bool { return &v }

func TestNewDirectoryRejectsAmbiguousHub(t *testing.T) {
	tenants := map[string]config.Tenant{
		"alpha": {HubName: "Shared-Hub", ConnectionString: "cs-a"},
		"beta":  {HubName: "shared-hub", ConnectionString: "cs-b"},
	}

	_, err := NewDirectory(tenants)
	if err == nil {
		t.Fatal("NewDirectory() accepted two tenants mapping the same hub")
	}
	if !strings.Contains(err.Error(), "already mapped") {
		t.Errorf("NewDirectory() error = %q, want mention of \"already mapped\"", err)
	}
}

func TestConfigForCaseInsensitive(t *testing.T) {
	d, err := NewDirectory(map[string]config.Tenant{
		"Tenant1": {HubName: "hub-one", ConnectionString: "cs-1", LocalToHub: boolPtr(false)},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	tests := []struct {
		name   string
		tenant string
		found  bool
	}{
		{"exact match", "Tenant1", true},
		{"lower case", "tenant1", true},
		{"upper case", "TENANT1", true},
		{"unknown tenant", "tenant2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := d.ConfigFor(tt.tenant)
			if ok != tt.found {
				t.Fatalf("ConfigFor(%q) found = %v, want %v", tt.tenant, ok, tt.found)
			}
			if !tt.found {
				return
			}
			if cfg.Name != "hub-one" {
				t.Errorf("ConfigFor(%q).Name = %q, want %q", tt.tenant, cfg.Name, "hub-one")
			}
			if cfg.LocalToHub {
				t.Error("ConfigFor() LocalToHub = true, want false (disabled in config)")
			}
			if !cfg.HubToLocal {
				t.Error("ConfigFor() HubToLocal = false, want true (default)")
			}
		})
	}
}

func TestTenantForCaseInsensitive(t *testing.T) {
	d, err := NewDirectory(map[string]config.Tenant{
		"alpha": {HubName: "Hub-Alpha", ConnectionString: "cs-a"},
		"beta":  {HubName: "Hub-Beta", ConnectionString: "cs-b"},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	tenant, cfg, ok := d.TenantFor("hub-alpha")
	if !ok {
		t.Fatal("TenantFor(\"hub-alpha\") not found")
	}
	if tenant != "alpha" {
		t.Errorf("TenantFor() tenant = %q, want %q", tenant, "alpha")
	}
	if cfg.ConnectionString != "cs-a" {
		t.Errorf("TenantFor() ConnectionString = %q, want %q", cfg.ConnectionString, "cs-a")
	}

	if _, _, ok := d.TenantFor("hub-gamma"); ok {
		t.Error("TenantFor(\"hub-gamma\") found = true, want false")
	}
}

func TestTenantsSorted(t *testing.T) {
	d, err := NewDirectory(map[string]config.Tenant{
		"charlie": {HubName: "hub-c", ConnectionString: "cs"},
		"alpha":   {HubName: "hub-a", ConnectionString: "cs"},
		"bravo":   {HubName: "hub-b", ConnectionString: "cs"},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	got := d.Tenants()
	want := []string{"alpha", "bravo", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("Tenants() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tenants()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
