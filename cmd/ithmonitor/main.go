// ITH Monitor Core - livestock heat-stress telemetry
//
// This is the main entry point for the ITH Monitor Core service. It ingests
// LoRaWAN uplinks pushed by a network-server webhook, keeps the sensor
// registry, and relays operator commands back to sensors as downlinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/nerrad567/ith-monitor-core/migrations"

	"github.com/nerrad567/ith-monitor-core/internal/api"
	"github.com/nerrad567/ith-monitor-core/internal/audit"
	"github.com/nerrad567/ith-monitor-core/internal/downlink"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ith-monitor-core/internal/ingest"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/observability"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
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

// processMetrics registers the collectors once per process.
var processMetrics = sync.OnceValue(observability.NewMetrics)

func main() {
	rollback := flag.Bool("migrate-down", false, "revert the newest applied migration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry := run
	if *rollback {
		entry = migrateDown
	}
	if err := entry(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Sequential wiring of optional collaborators
	log := logging.Default()
	log.Info("starting ITH Monitor Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath(), log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Dialect())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	metrics := processMetrics()

	registry := sensor.NewRegistry(sensor.NewSQLRepository(db))
	registry.SetLogger(log)
	measurements := measurement.NewSQLRepository(db)

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	sinks := []ingest.Sink{ingest.NewStreamSink(hub)}

	// MQTT (optional): retained telemetry out, device commands in.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		sinks = append(sinks, ingest.NewMQTTSink(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional): time-series mirror of every reading.
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, ingest.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	pipeline, err := ingest.New(ingest.Deps{
		Sensors:        registry,
		Measurements:   measurements,
		IdentityPolicy: cfg.Webhook.IdentityPolicy,
		Sinks:          sinks,
		Metrics:        metrics,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	log.Info("ingestion pipeline ready",
		"identity_policy", cfg.Webhook.IdentityPolicy,
		"sinks", len(sinks),
	)

	downlinkClient := downlink.NewClient(downlink.ClientConfig{
		BaseURL:  cfg.DownlinkBaseURL(),
		APIKey:   cfg.Downlink.APIKey,
		FPort:    cfg.Downlink.FPort,
		Priority: cfg.Downlink.Priority,
		Timeout:  cfg.GetDownlinkTimeout(),
	})
	if !downlinkClient.HasCredential() {
		log.Warn("downlink API key not configured; downlinks will fail")
	}
	relay := downlink.NewRelay(registry, downlinkClient, metrics)
	relay.SetLogger(log)
	auditTrail := audit.NewSQLRepository(db)

	if mqttClient != nil {
		if subErr := mqttClient.OnCommand(downlink.CommandHandler(relay, auditTrail)); subErr != nil {
			return fmt.Errorf("subscribing to device commands: %w", subErr)
		}
		log.Info("listening for device commands", "topic", mqtt.CommandFilter)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		DB:           db,
		Sensors:      registry,
		Measurements: measurements,
		Pipeline:     pipeline,
		Relay:        relay,
		Audit:        auditTrail,
		MQTT:         mqttClient,
		Influx:       influxClient,
		Downlink:     downlinkClient,
		Hub:          hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, database.
	log.Info("ITH Monitor Core stopped")
	return nil
}

// migrateDown reverts the newest applied migration and returns. It backs
// the -migrate-down flag.
func migrateDown(ctx context.Context) error {
	log := logging.Default()
	cfg, err := loadConfig(getConfigPath(), log)
	if err != nil {
		return err
	}
	log = logging.New(cfg.Logging, version)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exits next

	m, err := db.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	if m.Version == "" {
		log.Info("no migrations applied, nothing to revert")
		return nil
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("migration reverted",
		"version", m.Version,
		"name", m.Name,
		"current", status.Current,
	)
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Driver:       cfg.Driver,
		Path:         cfg.Path,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
		DSN:          cfg.DSN,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		Name:         cfg.Name,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// loadConfig reads the YAML file at path. A missing file falls back to the
// built-in defaults plus environment overrides.
func loadConfig(path string, log *logging.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		log.Info("configuration loaded", "path", path)
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log.Warn("config file not found, using defaults", "path", path)
	cfg, err = config.Default()
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Uses ITHMONITOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ITHMONITOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
