package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func (h *Handler) getHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.service.GetHold(r.Context(), actorFromRequest(r), chi.URLParam(r, "hold_id"))
	if err != nil {
		writeDomainError(w, r, "get_hold", err)
		return
	}
	writeSuccess(w, http.StatusOK, toHoldResponse(hold))
}

func (h *Handler) getRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.service.GetRefund(r.Context(), actorFromRequest(r), chi.URLParam(r, "refund_id"))
	if err != nil {
		writeDomainError(w, r, "get_refund", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRefundResponse(refund))
}

func (h *Handler) retryRefund(w http.ResponseWriter, r *http.Request) {
	var req contracts.RetryRefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	refundType := domain.RefundType(strings.ToUpper(strings.TrimSpace(req.RefundType)))
	refund, err := h.service.RetryRefund(r.Context(), actorFromRequest(r), chi.URLParam(r, "refund_id"), refundType)
	if err != nil {
		writeDomainError(w, r, "retry_refund", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRefundResponse(refund))
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := h.service.GetDispute(r.Context(), actorFromRequest(r), chi.URLParam(r, "dispute_id"))
	if err != nil {
		writeDomainError(w, r, "get_dispute", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponse(dispute))
}

func (h *Handler) startDisputeReview(w http.ResponseWriter, r *http.Request) {
	dispute, err := h.service.StartDisputeReview(r.Context(), actorFromRequest(r), chi.URLParam(r, "dispute_id"))
	if err != nil {
		writeDomainError(w, r, "start_dispute_review", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponse(dispute))
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.ResolveDisputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input := application.ResolveDisputeInput{
		Outcome:      domain.DisputeStatus(strings.ToUpper(strings.TrimSpace(req.Outcome))),
		SellerAmount: req.SellerAmount,
		Note:         req.Note,
	}
	if raw := strings.TrimSpace(req.SplitRatio); raw != "" {
		ratio, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "split_ratio must be a decimal between 0 and 1", false)
			return
		}
		input.SplitRatio = &ratio
	}
	res, err := h.service.ResolveDispute(r.Context(), actorFromRequest(r), chi.URLParam(r, "dispute_id"), input)
	if err != nil {
		writeDomainError(w, r, "resolve_dispute", err)
		return
	}
	out := contracts.DisputeResolutionResponse{
		Dispute:  toDisputeResponse(res.Dispute),
		Purchase: toPurchaseResponse(res.Purchase),
		Hold:     toHoldResponse(res.Hold),
	}
	if res.Refund != nil {
		refund := toRefundResponse(*res.Refund)
		out.Refund = &refund
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) closeDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := h.service.CloseDispute(r.Context(), actorFromRequest(r), chi.URLParam(r, "dispute_id"))
	if err != nil {
		writeDomainError(w, r, "close_dispute", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponse(dispute))
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payout, err := h.service.CreateBatch(r.Context(), actorFromRequest(r), req.SellerID)
	if err != nil {
		writeDomainError(w, r, "create_batch", err)
		return
	}
	if payout == nil {
		writeMessage(w, http.StatusOK, "available balance below payout minimum; deferred")
		return
	}
	writeSuccess(w, http.StatusCreated, toPayoutResponse(*payout))
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	accepted, batched, err := h.service.RunSweeps(r.Context(), actorFromRequest(r))
	if err != nil {
		writeDomainError(w, r, "run_sweeps", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.SweepResponse{AutoAccepted: accepted, PayoutsCreated: batched})
}

func (h *Handler) getPayout(w http.ResponseWriter, r *http.Request) {
	payout, err := h.service.GetPayout(r.Context(), actorFromRequest(r), chi.URLParam(r, "payout_id"))
	if err != nil {
		writeDomainError(w, r, "get_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) markPayoutProcessing(w http.ResponseWriter, r *http.Request) {
	payout, err := h.service.MarkPayoutProcessing(r.Context(), actorFromRequest(r), chi.URLParam(r, "payout_id"))
	if err != nil {
		writeDomainError(w, r, "mark_payout_processing", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) completePayout(w http.ResponseWriter, r *http.Request) {
	payout, err := h.service.CompletePayout(r.Context(), actorFromRequest(r), chi.URLParam(r, "payout_id"))
	if err != nil {
		writeDomainError(w, r, "complete_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) failPayout(w http.ResponseWriter, r *http.Request) {
	var req contracts.FailPayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payout, err := h.service.FailPayout(r.Context(), actorFromRequest(r), chi.URLParam(r, "payout_id"), req.Reason)
	if err != nil {
		writeDomainError(w, r, "fail_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) getSellerBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetSellerBalance(r.Context(), actorFromRequest(r), chi.URLParam(r, "seller_id"))
	if err != nil {
		writeDomainError(w, r, "get_seller_balance", err)
		return
	}
	writeSuccess(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) listSellerPayouts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "limit must be an integer", false)
		return
	}
	payouts, err := h.service.ListSellerPayouts(r.Context(), actorFromRequest(r), chi.URLParam(r, "seller_id"), limit)
	if err != nil {
		writeDomainError(w, r, "list_seller_payouts", err)
		return
	}
	out := make([]contracts.PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, toPayoutResponse(p))
	}
	writeSuccess(w, http.StatusOK, out)
}
