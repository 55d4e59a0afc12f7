package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyClaims    ctxKey = "auth_claims"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestLogger(r).ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"panic", rec,
				)
				writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", false)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials", false)
			return
		}
		claims, err := h.tokens.ParseAndValidate(raw)
		if err != nil {
			logOperationError(r, "authenticate", http.StatusUnauthorized, "UNAUTHORIZED", err)
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials", false)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func claimsFromContext(ctx context.Context) (ports.AuthClaims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(ports.AuthClaims)
	return claims, ok
}

// actorFromRequest builds the application actor from verified claims. Tokens
// can never claim the system role; that actor only exists inside the ledger.
func actorFromRequest(r *http.Request) application.Actor {
	claims, _ := claimsFromContext(r.Context())
	role := claims.Role
	if role != application.RoleAdmin {
		role = application.RoleUser
	}
	return application.Actor{
		SubjectID:      claims.SubjectID,
		Role:           role,
		RequestID:      requestIDFromContext(r.Context()),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func mapDomainError(err error) (int, string, string, bool) {
	code := domain.ErrorCode(err)
	switch code {
	case "INVALID_INPUT", "IDEMPOTENCY_KEY_REQUIRED":
		return http.StatusBadRequest, code, err.Error(), false
	case "UNAUTHORIZED":
		return http.StatusUnauthorized, code, "invalid or missing credentials", false
	case "FORBIDDEN":
		return http.StatusForbidden, code, "forbidden", false
	case "NOT_FOUND":
		return http.StatusNotFound, code, "resource not found", false
	case "INVALID_STATE_TRANSITION", "HOLD_EXISTS", "DISPUTE_EXISTS", "IDEMPOTENCY_CONFLICT", "CONFLICT":
		return http.StatusConflict, code, err.Error(), false
	case "CONCURRENCY_CONFLICT":
		return http.StatusConflict, code, "record changed concurrently, retry the request", true
	case "DUPLICATE_EVENT":
		return http.StatusOK, code, err.Error(), false
	case "POLICY_VIOLATION", "NO_ACTIVE_POLICY", "BANK_DETAILS_MISSING", "NOTHING_TO_PAY":
		return http.StatusUnprocessableEntity, code, err.Error(), false
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", false
	}
}
