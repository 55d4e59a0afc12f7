package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

// PolicyCache keeps the active policy in process when no redis is configured.
type PolicyCache struct {
	mu        sync.Mutex
	policy    *domain.FeePolicy
	expiresAt time.Time
	// newest activation written so far; survives invalidation
	activated time.Time
	now       func() time.Time
}

func NewPolicyCache() *PolicyCache {
	return &PolicyCache{now: time.Now}
}

func (c *PolicyCache) GetActivePolicy(_ context.Context) (*domain.FeePolicy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.policy == nil || !c.now().Before(c.expiresAt) {
		c.policy = nil
		return nil, nil
	}
	clone := *c.policy
	return &clone, nil
}

func (c *PolicyCache) SetActivePolicy(_ context.Context, policy domain.FeePolicy, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := activationStamp(policy)
	if stamp.Before(c.activated) {
		return nil
	}
	c.activated = stamp
	c.policy = &policy
	c.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *PolicyCache) InvalidateActivePolicy(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = nil
	return nil
}

func activationStamp(policy domain.FeePolicy) time.Time {
	if policy.ActivatedAt == nil {
		return time.Time{}
	}
	// postgres keeps microseconds
	return policy.ActivatedAt.Truncate(time.Microsecond)
}

// BankDirectory serves seller bank details from a fixed map.
type BankDirectory struct {
	mu      sync.RWMutex
	details map[string]domain.BankDetails
}

func NewBankDirectory() *BankDirectory {
	return &BankDirectory{details: make(map[string]domain.BankDetails)}
}

func (d *BankDirectory) Put(sellerID string, details domain.BankDetails) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.details[sellerID] = details
}

func (d *BankDirectory) GetBankDetails(_ context.Context, sellerID string) (domain.BankDetails, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	details, ok := d.details[sellerID]
	if !ok {
		return domain.BankDetails{}, domain.ErrNotFound
	}
	return details, nil
}

// Locker is a process-local ports.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]time.Time), now: time.Now}
}

func (l *Locker) TryLock(_ context.Context, name string, ttl time.Duration) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, nil
	}
	l.held[name] = now.Add(ttl)
	return func(context.Context) {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, nil
}
