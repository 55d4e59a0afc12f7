package application

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

const (
	RoleAdmin  = "admin"
	RoleSystem = "system"
	RoleUser   = "user"
)

type Config struct {
	ServiceName     string
	DefaultCurrency string
	IdempotencyTTL  time.Duration
	PolicyCacheTTL  time.Duration
	// AutoAcceptAfter is how long a delivery waits for the buyer before the
	// system accepts it. Zero disables auto-acceptance.
	AutoAcceptAfter time.Duration
	SweepBatchSize  int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

func (a Actor) privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// SystemActor is used for work the ledger starts on its own.
func SystemActor(requestID string) Actor {
	return Actor{SubjectID: "ledger-system", Role: RoleSystem, RequestID: requestID}
}

type CreatePolicyInput struct {
	Currency              string
	BuyerFeeRateBP        int64
	BuyerFeeMinimum       int64
	SellerFeeTiers        []domain.FeeTier
	GatewayBufferRateBP   int64
	GatewayBufferFixed    int64
	VATRateBP             int64
	ProcessingFeeRateBP   int64
	MinimumBaseAmount     int64
	PayoutReserveDays     int
	PayoutMinimum         int64
	PayoutFee             int64
	CourseRefundGraceDays int
}

type CreatePurchaseInput struct {
	Kind             domain.PurchaseKind
	SellerID         string
	BaseAmount       int64
	Currency         string
	Gateway          string
	RevisionsAllowed int
}

type CancelPurchaseInput struct {
	RefundType domain.RefundType
}

type CancellationResult struct {
	Purchase domain.PurchaseUnit
	Hold     *domain.EscrowHold
	Refund   *domain.Refund
}

type ResolveDisputeInput struct {
	Outcome      domain.DisputeStatus
	SplitRatio   *decimal.Decimal
	SellerAmount *int64
	Note         string
}

type DisputeResolution struct {
	Dispute  domain.Dispute
	Purchase domain.PurchaseUnit
	Hold     domain.EscrowHold
	Refund   *domain.Refund
}

type Service struct {
	cfg    Config
	store  ports.Store
	cache  ports.PolicyCache
	bank   ports.BankDetailsProvider
	logger *slog.Logger
	nowFn  func() time.Time
	newID  func() string
}

type Dependencies struct {
	Config Config
	Store  ports.Store
	Cache  ports.PolicyCache
	Bank   ports.BankDetailsProvider
	Logger *slog.Logger
	Clock  func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "marketplace-ledger"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "ZAR"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.PolicyCacheTTL <= 0 {
		cfg.PolicyCacheTTL = 5 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:    cfg,
		store:  deps.Store,
		cache:  deps.Cache,
		bank:   deps.Bank,
		logger: logger,
		nowFn:  nowFn,
		newID:  uuid.NewString,
	}
}
