package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
)

func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreatePolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	policy, err := h.service.CreatePolicy(r.Context(), actorFromRequest(r), policyInputFromRequest(req))
	if err != nil {
		writeDomainError(w, r, "create_policy", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPolicyResponse(policy))
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.ListPolicies(r.Context(), actorFromRequest(r))
	if err != nil {
		writeDomainError(w, r, "list_policies", err)
		return
	}
	out := make([]contracts.PolicyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getActivePolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.GetActivePolicy(r.Context())
	if err != nil {
		writeDomainError(w, r, "get_active_policy", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPolicyResponse(policy))
}

func (h *Handler) activatePolicy(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "version must be a positive integer", false)
		return
	}
	policy, err := h.service.ActivatePolicy(r.Context(), actorFromRequest(r), version)
	if err != nil {
		writeDomainError(w, r, "activate_policy", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPolicyResponse(policy))
}

func (h *Handler) quoteFees(w http.ResponseWriter, r *http.Request) {
	base, err := strconv.ParseInt(r.URL.Query().Get("base_amount"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "base_amount must be an integer in minor units", false)
		return
	}
	breakdown, err := h.service.QuoteFees(r.Context(), base)
	if err != nil {
		writeDomainError(w, r, "quote_fees", err)
		return
	}
	writeSuccess(w, http.StatusOK, toFeeBreakdownResponse(breakdown))
}
