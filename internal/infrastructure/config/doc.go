// Package config handles loading and validating twinbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields, including tenant ↔ hub uniqueness
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (hub connection strings, tokens) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load; a config reload replaces the
//     whole Config value rather than mutating it in place
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.PollIntervalMS)
package config
