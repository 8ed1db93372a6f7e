package handlers

import (
	"net/http"

	"github.com/agentstation/recon/internal/server/response"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/logging"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// HandleReconcile handles POST /api/v1/reconcile.
// @Summary Reconcile records
// @Description Deduplicate, match and merge a batch of records, recording a job
// @Tags reconcile
// @Accept json
// @Produce json
// @Param request body ReconcileRequest true "Records and matching configuration"
// @Success 200 {object} response.Response{data=recon.Result}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 413 {object} response.Response{error=response.Error}
// @Failure 504 {object} response.Response{error=response.Error}
// @Router /api/v1/reconcile [post].
func (h *Handlers) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var body ReconcileRequest
	if !h.decodeBody(w, r, &body) {
		return
	}

	req, err := body.toRequest(h.engine.Config())
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	result, err := h.engine.Reconcile(r.Context(), req)
	if err != nil {
		h.logError(r, err, "Reconciliation request failed")
		response.ErrorFromType(w, err)
		return
	}

	h.cache.Set(&result.Job)
	response.OK(w, result)
}

// HandleMatch handles POST /api/v1/match.
// @Summary Find matches
// @Description Score every pair of records and return those at or above the threshold
// @Tags reconcile
// @Accept json
// @Produce json
// @Param request body MatchRequest true "Records and matching fields"
// @Success 200 {object} response.Response{data=[]matcher.Candidate}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 413 {object} response.Response{error=response.Error}
// @Router /api/v1/match [post].
func (h *Handlers) HandleMatch(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var body MatchRequest
	if !h.decodeBody(w, r, &body) {
		return
	}
	if body.Data == nil {
		response.ErrorFromType(w, errors.NewValidationError("data", nil, "is required"))
		return
	}

	threshold := body.threshold(h.engine.Config().DefaultMatchThreshold)
	if err := similarity.ValidateThreshold("threshold", threshold); err != nil {
		response.ErrorFromType(w, err)
		return
	}

	cands, err := h.engine.FindMatches(r.Context(), records.Renumber(body.Data),
		body.MatchingConfig.MatchingFields, threshold)
	if err != nil {
		h.logError(r, err, "Match request failed")
		response.ErrorFromType(w, err)
		return
	}
	if cands == nil {
		cands = []matcher.Candidate{}
	}

	response.OK(w, map[string]any{
		"matches": cands,
		"count":   len(cands),
	})
}

// HandleDeduplicate handles POST /api/v1/deduplicate.
// @Summary Deduplicate records
// @Description Remove exact and near-duplicate records, keeping the first occurrence
// @Tags reconcile
// @Accept json
// @Produce json
// @Param request body DeduplicateRequest true "Records and deduplication configuration"
// @Success 200 {object} response.Response{data=object}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 413 {object} response.Response{error=response.Error}
// @Router /api/v1/deduplicate [post].
func (h *Handlers) HandleDeduplicate(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var body DeduplicateRequest
	if !h.decodeBody(w, r, &body) {
		return
	}
	if body.Data == nil {
		response.ErrorFromType(w, errors.NewValidationError("data", nil, "is required"))
		return
	}

	cfg, err := body.similarity(h.engine.Config().DefaultDedupThreshold)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	recs := records.Renumber(body.Data)
	out, err := h.engine.Deduplicate(r.Context(), recs, cfg)
	if err != nil {
		h.logError(r, err, "Deduplicate request failed")
		response.ErrorFromType(w, err)
		return
	}

	response.OK(w, map[string]any{
		"data":               out,
		"original_count":     len(recs),
		"deduplicated_count": len(out),
	})
}

// HandleValidateMatches handles POST /api/v1/validate-matches.
// @Summary Validate matches
// @Description Check candidate matches against a minimum score and required fields
// @Tags reconcile
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Matches and validation rules"
// @Success 200 {object} response.Response{data=object}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/validate-matches [post].
func (h *Handlers) HandleValidateMatches(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var body ValidateRequest
	if !h.decodeBody(w, r, &body) {
		return
	}

	results := h.engine.ValidateMatches(body.Matches, body.rules())
	valid := 0
	for _, v := range results {
		if v.Valid {
			valid++
		}
	}

	response.OK(w, map[string]any{
		"validated_matches": results,
		"total":             len(results),
		"valid":             valid,
	})
}

// logError logs failures that are not the caller's fault.
func (h *Handlers) logError(r *http.Request, err error, msg string) {
	if response.StatusFor(err) < http.StatusInternalServerError {
		return
	}
	logging.FromContext(r.Context()).Error().Err(err).Msg(msg)
}
