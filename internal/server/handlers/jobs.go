package handlers

import (
	"net/http"
	"strconv"

	"github.com/agentstation/recon/internal/server/response"
	"github.com/agentstation/recon/pkg/jobs"
)

// HandleListJobs handles GET /api/v1/reconciliations.
// @Summary List reconciliations
// @Description List recorded reconciliation jobs in creation order, without their output records
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param limit query int false "Maximum results" default(100)
// @Param offset query int false "Results to skip" default(0)
// @Success 200 {object} response.Response{data=jobs.Page}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/reconciliations [get].
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	limit, ok := intParam(w, query.Get("limit"), "limit", jobs.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := intParam(w, query.Get("offset"), "offset", 0)
	if !ok {
		return
	}

	page, err := h.engine.ListJobs(r.Context(), limit, offset)
	if err != nil {
		h.logError(r, err, "Listing reconciliations failed")
		response.ErrorFromType(w, err)
		return
	}
	if page.Jobs == nil {
		page.Jobs = []jobs.Summary{}
	}

	response.OK(w, page)
}

// HandleGetJob handles GET /api/v1/reconciliations/{id}.
// @Summary Get reconciliation
// @Description Get a recorded reconciliation job including its merged records
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param id path string true "Reconciliation ID"
// @Success 200 {object} response.Response{data=jobs.Job}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/reconciliations/{id} [get].
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request, id string) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}

	// Jobs never change once stored, so a cached copy is always current.
	if job, ok := h.cache.Get(id); ok {
		response.OK(w, job)
		return
	}

	job, err := h.engine.GetJob(r.Context(), id)
	if err != nil {
		h.logError(r, err, "Fetching reconciliation failed")
		response.ErrorFromType(w, err)
		return
	}

	h.cache.Set(job)
	response.OK(w, job)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(w http.ResponseWriter, raw, name string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.BadRequest(w, "Invalid "+name+" parameter", "must be a non-negative integer")
		return 0, false
	}
	return n, true
}
