package handlers

import (
	"net/http"

	"github.com/agentstation/utc"

	"github.com/agentstation/recon/internal/server/response"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "recon"

// Health is the liveness payload.
type Health struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Timestamp utc.Time `json:"timestamp"`
}

// Readiness is the readiness payload: the job store answered and the
// event stream is wired.
type Readiness struct {
	Status       string          `json:"status"`
	RetainedJobs int             `json:"jobs"`
	CachedJobs   int             `json:"cached_jobs"`
	Streams      StreamReadiness `json:"streams"`
}

// StreamReadiness describes the event stream.
type StreamReadiness struct {
	Subscribers      []string `json:"subscribers"`
	WebSocketClients int      `json:"websocket_clients"`
	SSEClients       int      `json:"sse_clients"`
	DroppedEvents    uint64   `json:"dropped_events"`
}

// HandleHealth handles GET /api/v1/health.
// @Summary Health check
// @Description Liveness probe; answers while the process serves HTTP
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=Health}
// @Router /api/v1/health [get].
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, Health{Status: "healthy", Service: ServiceName, Timestamp: utc.Now()})
}

// HandleReady handles GET /api/v1/ready.
// @Summary Readiness check
// @Description Readiness probe; fails with 503 while the job store cannot be read
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=Readiness}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/v1/ready [get].
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Job store not ready")
		response.ServiceUnavailable(w, "Job store not available")
		return
	}

	response.OK(w, Readiness{
		Status:       "ready",
		RetainedJobs: stats.RetainedJobs,
		CachedJobs:   h.cache.ItemCount(),
		Streams: StreamReadiness{
			Subscribers:      h.broker.Subscribers(),
			WebSocketClients: h.wsHub.ClientCount(),
			SSEClients:       h.sseBroadcaster.ClientCount(),
			DroppedEvents:    h.broker.Dropped(),
		},
	})
}

// HandleStats handles GET /api/v1/stats.
// @Summary Service statistics
// @Description Job totals, uptime and process resource usage
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=recon.ServiceStats}
// @Failure 500 {object} response.Response{error=response.Error}
// @Router /api/v1/stats [get].
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}

	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.logError(r, err, "Collecting stats failed")
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, stats)
}
