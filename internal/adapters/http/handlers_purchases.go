package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreatePurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := h.service.CreatePurchase(r.Context(), actorFromRequest(r), application.CreatePurchaseInput{
		Kind:             domain.PurchaseKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		SellerID:         req.SellerID,
		BaseAmount:       req.BaseAmount,
		Currency:         req.Currency,
		Gateway:          req.Gateway,
		RevisionsAllowed: req.RevisionsAllowed,
	})
	if err != nil {
		writeDomainError(w, r, "create_purchase", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPurchaseResponse(unit))
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.GetPurchase(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"))
	if err != nil {
		writeDomainError(w, r, "get_purchase", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPurchaseResponse(unit))
}

func (h *Handler) getPurchaseHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.service.GetHoldByPurchase(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"))
	if err != nil {
		writeDomainError(w, r, "get_purchase_hold", err)
		return
	}
	writeSuccess(w, http.StatusOK, toHoldResponse(hold))
}

func (h *Handler) startWork(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.StartWork(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"))
	if err != nil {
		writeDomainError(w, r, "start_work", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPurchaseResponse(unit))
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	var req contracts.DeliverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := h.service.Deliver(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"), req.DeliveryRef)
	if err != nil {
		writeDomainError(w, r, "deliver", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPurchaseResponse(unit))
}

func (h *Handler) requestRevision(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.RequestRevision(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"))
	if err != nil {
		writeDomainError(w, r, "request_revision", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPurchaseResponse(unit))
}

func (h *Handler) acceptDelivery(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.AcceptDelivery(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"))
	if err != nil {
		writeDomainError(w, r, "accept_delivery", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPurchaseResponse(unit))
}

func (h *Handler) cancelPurchase(w http.ResponseWriter, r *http.Request) {
	var req contracts.CancelPurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.CancelPurchase(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"), application.CancelPurchaseInput{
		RefundType: domain.RefundType(strings.ToUpper(strings.TrimSpace(req.RefundType))),
	})
	if err != nil {
		writeDomainError(w, r, "cancel_purchase", err)
		return
	}
	writeSuccess(w, http.StatusOK, toCancellationResponse(res))
}

func (h *Handler) raiseDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.RaiseDisputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dispute, err := h.service.RaiseDispute(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"), req.Reason)
	if err != nil {
		writeDomainError(w, r, "raise_dispute", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toDisputeResponse(dispute))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.ConfirmPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.service.ConfirmPayment(r.Context(), actorFromRequest(r), chi.URLParam(r, "purchase_unit_id"), req.PaymentRef)
	if err != nil {
		writeDomainError(w, r, "confirm_payment", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.GatewayEventResponse{GatewayRef: req.PaymentRef, Outcome: string(outcome)})
}
