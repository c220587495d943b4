package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/geowatch-core/internal/audit"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/geowatch-core/internal/tracking"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Tracker is the monitor surface driven by the API. *tracking.Monitor
// implements it.
type Tracker interface {
	Initialize(ctx context.Context, eventID, participantID, attendanceID string) (*tracking.LocationStatus, error)
	Ingest(ctx context.Context, eventID, participantID string, report tracking.LocationReport) (*tracking.Outcome, error)
	Stop(ctx context.Context, eventID, participantID string) (*tracking.LocationStatus, error)
	Acknowledge(ctx context.Context, recordID, alertID string) (*tracking.LocationStatus, error)
	QueryEventStatus(ctx context.Context, eventID string) ([]tracking.ParticipantStatus, error)
	Teardown(ctx context.Context, eventID string) (int, error)
	Timers() *tracking.TimerManager
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Tracker  Tracker
	Audit    audit.Repository // optional: enables GET /audit and API audit entries
	DB       *sql.DB          // optional: pool stats on /metrics
	Hub      *Hub             // optional: shared with the monitor for broadcasts
	Checks   map[string]HealthChecker
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	tracker   Tracker
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	db        *sql.DB
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	hub         *Hub
	externalHub bool
	tickets     *ticketStore

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	bgWG     sync.WaitGroup
}

// New creates an API server. It does not listen until Start is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If the logger, tracker or JWT secret is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		tracker:   deps.Tracker,
		auditRepo: deps.Audit,
		db:        deps.DB,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub, for wiring into the monitor.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. Background work
// (hub, ticket cleanup, audit writer) stops on Close or when ctx ends.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		s.startBackground(func() { s.hub.Run(srvCtx) })
	}
	s.startBackground(func() { s.cleanTicketsLoop(srvCtx) })
	if s.auditCh != nil {
		s.startBackground(func() { s.drainAuditLog(srvCtx) })
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) startBackground(fn func()) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		fn()
	}()
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// stops background work after the queued audit entries are written.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	s.bgWG.Wait()

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports an error until Start has bound the listener.
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
