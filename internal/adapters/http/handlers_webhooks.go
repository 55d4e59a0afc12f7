package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/contracts"
)

const signatureHeader = "X-Gateway-Signature"

// receiveGatewayWebhook verifies the gateway signature over the raw body
// before anything is decoded. Duplicates and unactionable deliveries answer
// 200 so the gateway stops retrying them.
func (h *Handler) receiveGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	gateway := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "gateway")))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "unreadable body", false)
		return
	}
	if err := h.webhooks.Verify(gateway, body, r.Header.Get(signatureHeader)); err != nil {
		writeDomainError(w, r, "verify_gateway_webhook", err)
		return
	}

	var msg contracts.GatewayWebhook
	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid json body", false)
		return
	}
	if msg.Gateway == "" {
		msg.Gateway = gateway
	}
	if !strings.EqualFold(msg.Gateway, gateway) {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "gateway does not match endpoint", false)
		return
	}

	outcome, err := h.service.HandleGatewayEvent(r.Context(), requestIDFromContext(r.Context()), application.GatewayEventFromWebhook(msg))
	if err != nil {
		writeDomainError(w, r, "handle_gateway_webhook", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.GatewayEventResponse{GatewayRef: msg.GatewayRef, Outcome: string(outcome)})
}
