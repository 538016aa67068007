// TwinBridge - bidirectional device registry synchronizer.
//
// TwinBridge keeps a local multi-tenant device registry and per-tenant
// cloud device-twin hubs eventually consistent: local device lifecycle
// changes are mirrored into the hubs, hub change-feed events are applied
// locally, and reported twin attributes are polled into local device
// attributes under the azureiot# namespace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/twinbridge/twinbridge-core/migrations"

	"github.com/google/uuid"

	"github.com/twinbridge/twinbridge-core/internal/api"
	"github.com/twinbridge/twinbridge-core/internal/hub"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/database"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/influxdb"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/mqtt"
	"github.com/twinbridge/twinbridge-core/internal/lock"
	"github.com/twinbridge/twinbridge-core/internal/registry"
	"github.com/twinbridge/twinbridge-core/internal/sync"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
	"github.com/twinbridge/twinbridge-core/internal/twin"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting TwinBridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Instance identity: the origin tag on outbound bus events and the
	// owner of cluster lock leases.
	instanceID := cfg.Instance.ID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	log.Info("instance identity", "instance_id", instanceID)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Tenant/hub directory
	directory, err := tenant.NewDirectory(cfg.Tenants)
	if err != nil {
		return fmt.Errorf("building tenant directory: %w", err)
	}
	log.Info("tenant directory initialised", "tenants", len(directory.Tenants()))

	// Per-tenant hub clients
	hubClients := make(sync.ClientSet, len(directory.Tenants()))
	twinReaders := make(map[string]twin.TwinReader, len(directory.Tenants()))
	for _, name := range directory.Tenants() {
		hubCfg, _ := directory.ConfigFor(name)
		client, clientErr := hub.NewClient(hubCfg.ConnectionString, cfg.RequestTimeout())
		if clientErr != nil {
			return fmt.Errorf("building hub client for tenant %s: %w", name, clientErr)
		}
		hubClients[name] = client
		twinReaders[name] = client
		log.Info("hub client ready", "tenant", name, "hub", hubCfg.Name)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetErrorCallback(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Registry gateway and synchronizers
	gateway := registry.NewSQLiteGateway(db.DB)
	origin := sync.NewInstanceOrigin(instanceID)
	twinSyncer := twin.NewSyncer(gateway, log)

	// The recorder interfaces are satisfied by the concrete client; keep
	// them nil when InfluxDB is disabled so recording is skipped.
	var syncRecorder sync.Recorder
	var pollRecorder twin.Recorder
	if influxClient != nil {
		syncRecorder = influxClient
		pollRecorder = influxClient
	}

	announcer := registry.NewEventPublisher(mqttClient, instanceID, log)
	forward := sync.NewForwardSynchronizer(origin, gateway, directory, hubClients, twinSyncer, syncRecorder, log)
	reverse := sync.NewReverseSynchronizer(gateway, directory, hubClients, announcer, syncRecorder, log)

	topics := mqtt.Topics{}
	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2 by config

	err = mqttClient.Subscribe(topics.AllRegistryEvents(), qos, func(topic string, payload []byte) error {
		forward.HandleBusMessage(ctx, topic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to registry events: %w", err)
	}
	err = mqttClient.Subscribe(topics.HubEvents(), qos, func(_ string, payload []byte) error {
		reverse.HandleBusMessage(ctx, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to hub change feed: %w", err)
	}
	log.Info("bus subscriptions established",
		"registry_events", topics.AllRegistryEvents(),
		"hub_events", topics.HubEvents(),
	)

	// Attribute polling scheduler, coordinated through the cluster lock
	locker := lock.NewManager(db.DB, instanceID, cfg.LockTTL())
	scheduler := twin.NewScheduler(twinSyncer, gateway, twinReaders, locker, pollRecorder,
		twin.SchedulerConfig{
			Interval: cfg.PollInterval(),
			PageSize: cfg.Sync.PageSize,
		}, log)
	scheduler.Start(ctx)
	defer scheduler.Wait()
	log.Info("attribute polling scheduled",
		"interval", cfg.PollInterval().String(),
		"page_size", cfg.Sync.PageSize,
	)

	// Operations API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Directory:  directory,
			Scheduler:  scheduler,
			InstanceID: instanceID,
			Version:    version,
			Health: map[string]api.HealthChecker{
				"database": db,
				"mqtt":     mqttClient,
			},
		})
		if apiErr != nil {
			return fmt.Errorf("building API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy before settling in
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("TwinBridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TWINBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TWINBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
