package server

import (
	"net/http"
	"strings"

	"github.com/agentstation/recon/internal/server/handlers"
	"github.com/agentstation/recon/internal/server/middleware"
	"github.com/agentstation/recon/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(handlers.Deps{
		Engine:         s.engine,
		Cache:          s.jobs,
		Broker:         s.broker,
		WSHub:          s.hub,
		SSEBroadcaster: s.stream,
		Upgrader:       s.upgrader,
		MaxBodyBytes:   s.config.MaxBodyBytes,
		Logger:         s.logger,
	})

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health endpoints
	mux.HandleFunc(prefix+"/health", h.HandleHealth)
	if prefix != "" {
		mux.HandleFunc("/health", h.HandleHealth)
	}
	mux.HandleFunc(prefix+"/ready", h.HandleReady)
	mux.HandleFunc(prefix+"/stats", h.HandleStats)

	// Reconciliation endpoints
	mux.HandleFunc(prefix+"/reconcile", h.HandleReconcile)
	mux.HandleFunc(prefix+"/match", h.HandleMatch)
	mux.HandleFunc(prefix+"/deduplicate", h.HandleDeduplicate)
	mux.HandleFunc(prefix+"/validate-matches", h.HandleValidateMatches)

	// Job history
	mux.HandleFunc(prefix+"/reconciliations", h.HandleListJobs)
	mux.HandleFunc(prefix+"/reconciliations/", func(w http.ResponseWriter, r *http.Request) {
		id := extractPathParam(r.URL.Path, prefix+"/reconciliations/")
		if id == "" {
			h.HandleListJobs(w, r)
			return
		}
		h.HandleGetJob(w, r, id)
	})

	// Real-time endpoints
	mux.HandleFunc(prefix+"/events/ws", h.HandleWebSocket)
	mux.HandleFunc(prefix+"/events/stream", h.HandleSSE)

	if s.config.MetricsEnabled && s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found", "No route for "+r.URL.Path)
	})
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	// Recovery runs inside Logger so panics are logged with the request id
	// and the access log records the 500.
	chain := []middleware.Middleware{middleware.Logger(s.logger), middleware.Recovery(s.logger)}

	if cfg.CORSEnabled {
		chain = append(chain, middleware.CORS(middleware.NewOrigins(cfg.CORSOrigins)))
	}

	if s.limiter != nil {
		chain = append(chain, middleware.RateLimit(s.limiter))
	}

	return middleware.Chain(chain...)(handler)
}

// extractPathParam returns the first path segment after prefix.
func extractPathParam(path, prefix string) string {
	trimmed := strings.TrimPrefix(path, prefix)
	id, _, _ := strings.Cut(trimmed, "/")
	return id
}
