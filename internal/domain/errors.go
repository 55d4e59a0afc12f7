package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateEvent         = errors.New("duplicate event")
	ErrPolicyViolation        = errors.New("policy violation")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")

	ErrNoActivePolicy     = errors.New("no active fee policy")
	ErrHoldExists         = errors.New("escrow hold already exists")
	ErrDisputeExists      = errors.New("open dispute already exists")
	ErrBankDetailsMissing = errors.New("seller bank details missing")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrNothingToPay       = errors.New("no payable funds")
)

// ErrorCode returns the stable code surfaced to API callers.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidSignature):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrIdempotencyRequired):
		return "IDEMPOTENCY_KEY_REQUIRED"
	case errors.Is(err, ErrIdempotencyConflict):
		return "IDEMPOTENCY_CONFLICT"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrDuplicateEvent):
		return "DUPLICATE_EVENT"
	case errors.Is(err, ErrPolicyViolation):
		return "POLICY_VIOLATION"
	case errors.Is(err, ErrConcurrencyConflict):
		return "CONCURRENCY_CONFLICT"
	case errors.Is(err, ErrNoActivePolicy):
		return "NO_ACTIVE_POLICY"
	case errors.Is(err, ErrHoldExists):
		return "HOLD_EXISTS"
	case errors.Is(err, ErrDisputeExists):
		return "DISPUTE_EXISTS"
	case errors.Is(err, ErrBankDetailsMissing):
		return "BANK_DETAILS_MISSING"
	case errors.Is(err, ErrNothingToPay):
		return "NOTHING_TO_PAY"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}
