package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type Handler struct {
	service  *application.Service
	tokens   ports.TokenVerifier
	webhooks ports.WebhookVerifier
	ready    func(ctx context.Context) error
}

// NewHandler wires the ledger service behind the API. ready may be nil.
func NewHandler(service *application.Service, tokens ports.TokenVerifier, webhooks ports.WebhookVerifier, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, tokens: tokens, webhooks: webhooks, ready: ready}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", handler.readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/webhooks/gateways/{gateway}", handler.receiveGatewayWebhook)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)

			r.Get("/fees/quote", handler.quoteFees)

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", handler.listPolicies)
				r.Post("/", handler.createPolicy)
				r.Get("/active", handler.getActivePolicy)
				r.Post("/{version}/activate", handler.activatePolicy)
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Post("/", handler.createPurchase)
				r.Route("/{purchase_unit_id}", func(r chi.Router) {
					r.Get("/", handler.getPurchase)
					r.Get("/hold", handler.getPurchaseHold)
					r.Post("/start", handler.startWork)
					r.Post("/deliver", handler.deliver)
					r.Post("/revisions", handler.requestRevision)
					r.Post("/accept", handler.acceptDelivery)
					r.Post("/cancel", handler.cancelPurchase)
					r.Post("/disputes", handler.raiseDispute)
					r.Post("/payment-confirmations", handler.confirmPayment)
				})
			})

			r.Get("/holds/{hold_id}", handler.getHold)
			r.Get("/refunds/{refund_id}", handler.getRefund)
			r.Post("/refunds/{refund_id}/retry", handler.retryRefund)

			r.Route("/disputes/{dispute_id}", func(r chi.Router) {
				r.Get("/", handler.getDispute)
				r.Post("/review", handler.startDisputeReview)
				r.Post("/resolve", handler.resolveDispute)
				r.Post("/close", handler.closeDispute)
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Post("/batches", handler.createBatch)
				r.Post("/sweep", handler.sweep)
				r.Route("/{payout_id}", func(r chi.Router) {
					r.Get("/", handler.getPayout)
					r.Post("/processing", handler.markPayoutProcessing)
					r.Post("/complete", handler.completePayout)
					r.Post("/fail", handler.failPayout)
				})
			})

			r.Route("/sellers/{seller_id}", func(r chi.Router) {
				r.Get("/balance", handler.getSellerBalance)
				r.Get("/payouts", handler.listSellerPayouts)
			})
		})
	})
	return r
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logOperationError(r, "readyz", http.StatusServiceUnavailable, "NOT_READY", err)
			writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", true)
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
