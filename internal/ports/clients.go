package ports

import (
	"context"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

// BankDetailsProvider reads a seller's verified payout destination.
type BankDetailsProvider interface {
	GetBankDetails(ctx context.Context, sellerID string) (domain.BankDetails, error)
}

// PolicyCache holds the active fee policy between activations.
type PolicyCache interface {
	GetActivePolicy(ctx context.Context) (*domain.FeePolicy, error)
	// SetActivePolicy keeps whichever policy was activated last; a write
	// carrying an older ActivatedAt than one already seen is dropped.
	SetActivePolicy(ctx context.Context, policy domain.FeePolicy, ttl time.Duration) error
	InvalidateActivePolicy(ctx context.Context) error
}

// Locker grants a short-lived exclusive lease by name.
type Locker interface {
	// TryLock returns a nil release func when another holder has the lease.
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error)
}

type AuthClaims struct {
	SubjectID string
	Role      string
	ExpiresAt time.Time
}

type TokenVerifier interface {
	ParseAndValidate(raw string) (AuthClaims, error)
}

// WebhookVerifier checks a gateway's signature over the raw request body.
type WebhookVerifier interface {
	Verify(gateway string, body []byte, signature string) error
}
