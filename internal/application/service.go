package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

// runTx retries fn once with fresh state when a compare-and-set lost a race.
func (s *Service) runTx(ctx context.Context, operation string, fn func(ctx context.Context, tx ports.Tx) error) error {
	err := s.store.WithinTx(ctx, fn)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	s.logger.InfoContext(ctx, "retrying after concurrency conflict",
		"module", "application",
		"layer", "service",
		"operation", operation,
		"outcome", "retry",
	)
	return s.store.WithinTx(ctx, fn)
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func requirePrivileged(actor Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.privileged() {
		return domain.ErrForbidden
	}
	return nil
}

func authorizeParty(actor Actor, unit domain.PurchaseUnit) error {
	if actor.privileged() || actor.SubjectID == unit.BuyerID || actor.SubjectID == unit.SellerID {
		return nil
	}
	return domain.ErrForbidden
}

func (s *Service) reportPolicyViolation(ctx context.Context, operation string, err error) {
	s.logger.ErrorContext(ctx, "fee policy violation",
		"module", "application",
		"layer", "service",
		"operation", operation,
		"outcome", "policy_violation",
		"alert", "operator",
		"error", err,
	)
}

func replayIdempotent[T any](ctx context.Context, s *Service, key, requestHash string) (T, bool, error) {
	var zero T
	repo := s.store.Idempotency()
	if repo == nil || strings.TrimSpace(key) == "" {
		return zero, false, nil
	}
	rec, err := repo.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return zero, false, err
	}
	if rec.RequestHash != requestHash {
		return zero, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		// reserved by a request that has not finished
		return zero, false, domain.ErrIdempotencyConflict
	}
	var out T
	if err := json.Unmarshal(rec.ResponseBody, &out); err != nil {
		return zero, false, nil
	}
	return out, true, nil
}

// reserveIdempotency and completeIdempotencyJSON run on the transaction's
// repository so a failed request leaves no reservation behind.
func (s *Service) reserveIdempotency(ctx context.Context, repo ports.IdempotencyRepository, key, requestHash string) error {
	now := s.nowFn()
	err := repo.Reserve(ctx, key, requestHash, now, now.Add(s.cfg.IdempotencyTTL))
	if errors.Is(err, domain.ErrConflict) {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, repo ports.IdempotencyRepository, key string, code int, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return repo.Complete(ctx, key, code, b, s.nowFn())
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
