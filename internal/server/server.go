// Package server provides the HTTP server for the recon API.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/internal/server/cache"
	"github.com/agentstation/recon/internal/server/events"
	"github.com/agentstation/recon/internal/server/events/adapters"
	"github.com/agentstation/recon/internal/server/middleware"
	"github.com/agentstation/recon/internal/server/sse"
	ws "github.com/agentstation/recon/internal/server/websocket"
	"github.com/agentstation/recon/pkg/jobs"
)

// Server serves the reconciliation API for one engine and streams its job
// outcomes to WebSocket and SSE clients.
type Server struct {
	engine  recon.Engine
	config  Config
	logger  *zerolog.Logger
	metrics *metrics.Metrics

	jobs    *cache.Cache
	broker  *events.Broker
	hub     *ws.Hub
	stream  *sse.Broadcaster
	limiter *middleware.RateLimiter

	upgrader websocket.Upgrader

	// Background loops started by Start; stop cancels them.
	stop    context.CancelFunc
	running context.Context
	start   sync.Once
	loops   sync.WaitGroup
}

// New creates a server for engine. A nil m disables the /metrics endpoint.
func New(engine recon.Engine, cfg Config, logger *zerolog.Logger, m *metrics.Metrics) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}

	s := &Server{
		engine:  engine,
		config:  cfg,
		logger:  logger,
		metrics: m,
		jobs:    cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		broker:  events.NewBroker(logger),
		hub:     ws.NewHub(logger),
		stream:  sse.NewBroadcaster(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg),
		},
	}
	s.running, s.stop = context.WithCancel(context.Background())
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, logger)
	}

	adapters.Attach(s.broker, s.hub, s.stream)
	s.connectHooks()
	s.registerGauges()

	logger.Debug().
		Str("addr", cfg.Addr()).
		Bool("rate_limited", s.limiter != nil).
		Msg("Server created")
	return s, nil
}

// connectHooks publishes engine job outcomes to the broker.
func (s *Server) connectHooks() {
	publish := func(job jobs.Job) {
		seq := s.broker.PublishJob(job)
		s.logger.Debug().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Uint64("seq", seq).
			Msg("Job event published")
	}
	s.engine.OnJobCompleted(publish)
	s.engine.OnJobFailed(publish)
}

func (s *Server) registerGauges() {
	gauges := []struct {
		name, help string
		value      func() float64
	}{
		{"recon_websocket_clients", "Connected WebSocket clients.",
			func() float64 { return float64(s.hub.ClientCount()) }},
		{"recon_sse_clients", "Connected SSE clients.",
			func() float64 { return float64(s.stream.ClientCount()) }},
		{"recon_events_dropped", "Job events discarded because the broker queue was full.",
			func() float64 { return float64(s.broker.Dropped()) }},
		{"recon_websocket_evicted_clients", "WebSocket clients disconnected for falling behind.",
			func() float64 { return float64(s.hub.Evicted()) }},
		{"recon_job_cache_entries", "Jobs held in the response cache.",
			func() float64 { return float64(s.jobs.ItemCount()) }},
	}
	for _, g := range gauges {
		s.metrics.RegisterGaugeFunc(g.name, g.help, g.value)
	}
}

// Start launches the broker, the WebSocket hub, the SSE broadcaster and,
// when rate limiting is on, the limiter sweep. Only the first call before
// Shutdown has an effect.
func (s *Server) Start() {
	s.start.Do(func() {
		if s.running.Err() != nil {
			return
		}
		loops := []func(context.Context){s.broker.Run, s.hub.Run, s.stream.Run}
		if s.limiter != nil {
			loops = append(loops, s.limiter.Run)
		}
		s.loops.Add(len(loops))
		for _, run := range loops {
			go func() {
				defer s.loops.Done()
				run(s.running)
			}()
		}
		s.logger.Debug().Int("loops", len(loops)).Msg("Background services started")
	})
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
}

// Shutdown stops the background loops and waits for them to exit. The hub
// and the broadcaster disconnect their clients on the way out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping background services")
	s.stop()

	stopped := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info().Msg("Background services stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services did not stop in time")
		return ctx.Err()
	}
}

// Cache returns the job response cache.
func (s *Server) Cache() *cache.Cache { return s.jobs }

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub { return s.hub }

// checkOrigin allows WebSocket upgrades from the configured CORS origins,
// or from anywhere with CORS disabled.
func checkOrigin(cfg Config) func(*http.Request) bool {
	if !cfg.CORSEnabled {
		return func(*http.Request) bool { return true }
	}
	return middleware.NewOrigins(cfg.CORSOrigins).CheckOrigin
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
