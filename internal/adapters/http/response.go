package http

import (
	"encoding/json"
	"net/http"

	"github.com/viralforge/marketplace-ledger/internal/contracts"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status: "success",
		Data:   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, retryable bool) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestIDFromContext(r.Context()),
			Retryable: retryable,
		},
	})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, message, retryable := mapDomainError(err)
	logOperationError(r, operation, status, code, err)
	writeError(w, r, status, code, message, retryable)
}
