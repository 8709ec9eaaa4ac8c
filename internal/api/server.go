package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
	"github.com/nerrad567/ith-monitor-core/internal/downlink"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ith-monitor-core/internal/ingest"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Logger       *logging.Logger
	DB           *database.DB
	Sensors      *sensor.Registry
	Measurements measurement.Repository
	Pipeline     *ingest.Pipeline
	Relay        *downlink.Relay

	// Audit, if set, records operator actions.
	Audit audit.Repository

	// Optional collaborators, reported on /system when present.
	MQTT     *mqtt.Client
	Influx   *influxdb.Client
	Downlink *downlink.Client

	// Hub, if set, is used instead of creating one. The ingestion pipeline
	// needs the hub before the server exists to stream measurements.
	Hub *Hub

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	db           *database.DB
	sensors      *sensor.Registry
	measurements measurement.Repository
	pipeline     *ingest.Pipeline
	relay        *downlink.Relay
	audit        audit.Repository
	mqtt         *mqtt.Client
	influx       *influxdb.Client
	downlink     *downlink.Client
	version      string
	startTime    time.Time
	server       *http.Server
	hub          *Hub
	externalHub  bool
	cancel       context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor registry is required")
	}
	if deps.Measurements == nil {
		return nil, fmt.Errorf("measurement repository is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("ingestion pipeline is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("downlink relay is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		db:           deps.DB,
		sensors:      deps.Sensors,
		measurements: deps.Measurements,
		pipeline:     deps.Pipeline,
		relay:        deps.Relay,
		audit:        deps.Audit,
		mqtt:         deps.MQTT,
		influx:       deps.Influx,
		downlink:     deps.Downlink,
		version:      deps.Version,
		startTime:    time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start builds the router, starts the WebSocket hub (unless injected) and
// launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Handler returns the fully wired router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
