package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func standardPolicy() domain.FeePolicy {
	return domain.FeePolicy{
		Version:             1,
		Currency:            "ZAR",
		BuyerFeeRateBP:      300,
		BuyerFeeMinimum:     1500,
		SellerFeeTiers:      []domain.FeeTier{{RateBP: 800, Minimum: 2000}},
		GatewayBufferRateBP: 290,
		GatewayBufferFixed:  200,
		VATRateBP:           1500,
		ProcessingFeeRateBP: 500,
		MinimumBaseAmount:   5000,
		PayoutReserveDays:   7,
		PayoutMinimum:       10000,
		PayoutFee:           500,
	}
}

func TestComputeFeesStandardOrder(t *testing.T) {
	t.Parallel()

	got, err := domain.ComputeFees(100000, standardPolicy())
	if err != nil {
		t.Fatalf("ComputeFees: %v", err)
	}
	if got.BuyerFee != 3000 || got.SellerFee != 8000 {
		t.Fatalf("fees = %d/%d, want 3000/8000", got.BuyerFee, got.SellerFee)
	}
	if got.GrossAmount != 103000 || got.SellerPayoutAmount != 92000 || got.PlatformRevenue != 11000 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if got.PolicyVersion != 1 {
		t.Fatalf("policy version = %d", got.PolicyVersion)
	}
	if got.VATAmount != 1650 {
		t.Fatalf("vat = %d, want 1650", got.VATAmount)
	}
}

func TestComputeFeesAppliesMinimums(t *testing.T) {
	t.Parallel()

	got, err := domain.ComputeFees(10000, standardPolicy())
	if err != nil {
		t.Fatalf("ComputeFees: %v", err)
	}
	if got.BuyerFee != 1500 {
		t.Fatalf("buyer fee = %d, want minimum 1500", got.BuyerFee)
	}
	if got.SellerFee != 2000 {
		t.Fatalf("seller fee = %d, want minimum 2000", got.SellerFee)
	}
	if err := got.Check(); err != nil {
		t.Fatalf("identities: %v", err)
	}
}

func TestComputeFeesRoundsHalfUpOnce(t *testing.T) {
	t.Parallel()

	policy := standardPolicy()
	policy.BuyerFeeMinimum = 0
	policy.SellerFeeTiers = []domain.FeeTier{{RateBP: 250}}
	// 3% of 50050 is 1501.5 and 2.5% is 1251.25
	got, err := domain.ComputeFees(50050, policy)
	if err != nil {
		t.Fatalf("ComputeFees: %v", err)
	}
	if got.BuyerFee != 1502 || got.SellerFee != 1251 {
		t.Fatalf("fees = %d/%d, want 1502/1251", got.BuyerFee, got.SellerFee)
	}
}

func TestComputeFeesSelectsTier(t *testing.T) {
	t.Parallel()

	policy := standardPolicy()
	policy.SellerFeeTiers = []domain.FeeTier{
		{UpTo: int64Ptr(100000), RateBP: 1000, Minimum: 2000},
		{UpTo: int64Ptr(500000), RateBP: 800, Minimum: 2000},
		{RateBP: 500, Minimum: 2000},
	}
	cases := []struct {
		name string
		base int64
		want int64
	}{
		{name: "first tier inclusive bound", base: 100000, want: 10000},
		{name: "second tier", base: 100001, want: 8000},
		{name: "unbounded tier", base: 1000000, want: 50000},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.ComputeFees(tc.base, policy)
			if err != nil {
				t.Fatalf("ComputeFees: %v", err)
			}
			if got.SellerFee != tc.want {
				t.Fatalf("seller fee = %d, want %d", got.SellerFee, tc.want)
			}
		})
	}
}

func TestComputeFeesRejectsBelowMinimum(t *testing.T) {
	t.Parallel()

	_, err := domain.ComputeFees(4999, standardPolicy())
	if !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
}

func TestComputeFeesRejectsOutOfRangeBase(t *testing.T) {
	t.Parallel()

	hugeMinimum := standardPolicy()
	hugeMinimum.BuyerFeeMinimum = math.MaxInt64 - 100
	cases := []struct {
		name   string
		base   int64
		policy domain.FeePolicy
	}{
		{name: "near int64 max", base: math.MaxInt64 - 1000, policy: standardPolicy()},
		{name: "just above cap", base: domain.MaxBaseAmount + 1, policy: standardPolicy()},
		{name: "zero", base: 0, policy: standardPolicy()},
		{name: "negative", base: -100000, policy: standardPolicy()},
		{name: "buyer minimum overflows gross", base: 100000, policy: hugeMinimum},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.ComputeFees(tc.base, tc.policy)
			if !errors.Is(err, domain.ErrPolicyViolation) {
				t.Fatalf("expected policy violation, got err=%v gross=%d", err, got.GrossAmount)
			}
		})
	}
}

func TestComputeFeesAcceptsMaximumBase(t *testing.T) {
	t.Parallel()

	got, err := domain.ComputeFees(domain.MaxBaseAmount, standardPolicy())
	if err != nil {
		t.Fatalf("ComputeFees: %v", err)
	}
	if got.GrossAmount <= got.BaseAmount || got.SellerPayoutAmount <= 0 {
		t.Fatalf("unexpected breakdown at cap %+v", got)
	}
}

func TestFeeBreakdownCheck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		breakdown domain.FeeBreakdown
		wantError bool
	}{
		{name: "consistent", breakdown: domain.FeeBreakdown{BaseAmount: 100000, BuyerFee: 3000, SellerFee: 8000, GrossAmount: 103000, SellerPayoutAmount: 92000, PlatformRevenue: 11000}},
		{name: "wrapped negative gross", breakdown: domain.FeeBreakdown{BaseAmount: math.MaxInt64 - 1000, BuyerFee: 2000, SellerFee: 0, GrossAmount: math.MinInt64 + 999, SellerPayoutAmount: math.MaxInt64 - 1000, PlatformRevenue: 2000}, wantError: true},
		{name: "zero gross", breakdown: domain.FeeBreakdown{}, wantError: true},
		{name: "gross mismatch", breakdown: domain.FeeBreakdown{BaseAmount: 100000, BuyerFee: 3000, SellerFee: 8000, GrossAmount: 103001, SellerPayoutAmount: 92000, PlatformRevenue: 11000}, wantError: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.breakdown.Check()
			if tc.wantError && !errors.Is(err, domain.ErrPolicyViolation) {
				t.Fatalf("expected policy violation, got %v", err)
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}

func TestComputeFeesIdentitiesHoldAcrossRange(t *testing.T) {
	t.Parallel()

	policy := standardPolicy()
	for base := int64(5000); base <= 500000; base += 777 {
		got, err := domain.ComputeFees(base, policy)
		if err != nil {
			t.Fatalf("base %d: %v", base, err)
		}
		if got.GrossAmount != got.SellerPayoutAmount+got.PlatformRevenue {
			t.Fatalf("base %d: gross %d != payout %d + revenue %d", base, got.GrossAmount, got.SellerPayoutAmount, got.PlatformRevenue)
		}
		if got.SellerPayoutAmount < 0 {
			t.Fatalf("base %d: negative payout", base)
		}
	}
}

func TestComputeFeesClampsAndFlagsMisconfiguredPolicy(t *testing.T) {
	t.Parallel()

	policy := standardPolicy()
	policy.SellerFeeTiers = []domain.FeeTier{{RateBP: 800, Minimum: 6000}}
	got, err := domain.ComputeFees(5000, policy)
	if !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if got.SellerFee != 5000 || got.SellerPayoutAmount != 0 {
		t.Fatalf("expected clamp to base, got %+v", got)
	}
}

func TestValidatePolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		mutate    func(p *domain.FeePolicy)
		wantError bool
	}{
		{name: "valid", mutate: func(p *domain.FeePolicy) {}},
		{name: "seller minimum exceeds smallest base amount", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{RateBP: 800, Minimum: 6000}}
		}, wantError: true},
		{name: "seller minimum exceeds lower bound of upper tier", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{UpTo: int64Ptr(9000), RateBP: 800, Minimum: 2000}, {RateBP: 500, Minimum: 9500}}
		}, wantError: true},
		{name: "rate above one hundred percent", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{RateBP: 10001}}
		}, wantError: true},
		{name: "bounded last tier", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{UpTo: int64Ptr(100000), RateBP: 800}}
		}, wantError: true},
		{name: "unbounded middle tier", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{RateBP: 800}, {RateBP: 500}}
		}, wantError: true},
		{name: "descending bounds", mutate: func(p *domain.FeePolicy) {
			p.SellerFeeTiers = []domain.FeeTier{{UpTo: int64Ptr(100000), RateBP: 800}, {UpTo: int64Ptr(50000), RateBP: 700}, {RateBP: 500}}
		}, wantError: true},
		{name: "missing minimum base", mutate: func(p *domain.FeePolicy) {
			p.MinimumBaseAmount = 0
		}, wantError: true},
		{name: "negative payout fee", mutate: func(p *domain.FeePolicy) {
			p.PayoutFee = -1
		}, wantError: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := standardPolicy()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantError && !errors.Is(err, domain.ErrPolicyViolation) {
				t.Fatalf("expected policy violation, got %v", err)
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}
