package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// SystemStatus is the /system response.
type SystemStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Stream        StreamMetrics   `json:"stream"`
	MQTT          LinkStatus      `json:"mqtt"`
	InfluxDB      LinkStatus      `json:"influxdb"`
	Downlink      DownlinkStatus  `json:"downlink"`
	Sensors       SensorMetrics   `json:"sensors"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// StreamMetrics reports live measurement viewers.
type StreamMetrics struct {
	Viewers int `json:"viewers"`
}

// LinkStatus describes an optional collaborator.
type LinkStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
	// WriteFailures counts rejected batches; only the InfluxDB mirror sets it.
	WriteFailures uint64 `json:"write_failures,omitempty"`
}

// DownlinkStatus reports whether downlinks can be pushed at all.
type DownlinkStatus struct {
	CredentialConfigured bool `json:"credential_configured"`
}

// SensorMetrics summarises the registry.
type SensorMetrics struct {
	sensor.Counts
	Errored bool `json:"errored,omitempty"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	Dialect         string `json:"dialect"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`

	Migrations database.MigrationStatus `json:"migrations"`
	// MigrationsErrored is set when the schema_migrations table could not be read.
	MigrationsErrored bool `json:"migrations_errored,omitempty"`
}

const bytesPerMB = 1024 * 1024

// handleSystem reports process, pool and collaborator status.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
	}

	if s.hub != nil {
		status.Stream.Viewers = s.hub.ViewerCount()
	}
	if s.downlink != nil {
		status.Downlink.CredentialConfigured = s.downlink.HasCredential()
	}
	if s.mqtt != nil {
		status.MQTT = LinkStatus{Enabled: true, Connected: s.mqtt.Connected()}
	}
	if s.influx != nil {
		status.InfluxDB = LinkStatus{
			Enabled:       true,
			Connected:     s.influx.Connected(),
			WriteFailures: s.influx.WriteFailures(),
		}
	}

	counts, err := s.sensors.Counts(r.Context())
	if err != nil {
		s.logger.Warn("system status: counting sensors failed", "error", err)
		status.Sensors.Errored = true
	}
	status.Sensors.Counts = counts

	stats := s.db.Stats()
	status.Database = DatabaseMetrics{
		Dialect:         s.db.Dialect(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
	}
	if status.Database.Migrations, err = s.db.MigrationStatus(r.Context()); err != nil {
		s.logger.Warn("system status: reading migrations failed", "error", err)
		status.Database.MigrationsErrored = true
	}

	writeJSON(w, http.StatusOK, status)
}
