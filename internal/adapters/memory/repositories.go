package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type policyRepository struct{ v view }

func (r policyRepository) Create(_ context.Context, row domain.FeePolicy) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.policies[row.Version]; ok {
		return domain.ErrConflict
	}
	st.policies[row.Version] = row
	return nil
}

func (r policyRepository) GetByVersion(_ context.Context, version int) (domain.FeePolicy, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.policies[version]
	if !ok {
		return domain.FeePolicy{}, domain.ErrNotFound
	}
	return row, nil
}

func (r policyRepository) GetActive(_ context.Context) (domain.FeePolicy, error) {
	st, done := r.v.acquire()
	defer done()
	for _, row := range st.policies {
		if row.IsActive {
			return row, nil
		}
	}
	return domain.FeePolicy{}, domain.ErrNotFound
}

func (r policyRepository) List(_ context.Context) ([]domain.FeePolicy, error) {
	st, done := r.v.acquire()
	defer done()
	out := make([]domain.FeePolicy, 0, len(st.policies))
	for _, row := range st.policies {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b domain.FeePolicy) int { return a.Version - b.Version })
	return out, nil
}

func (r policyRepository) NextVersion(_ context.Context) (int, error) {
	st, done := r.v.acquire()
	defer done()
	next := 1
	for version := range st.policies {
		if version >= next {
			next = version + 1
		}
	}
	return next, nil
}

func (r policyRepository) Activate(_ context.Context, version int, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.policies[version]; !ok {
		return domain.ErrNotFound
	}
	for v, row := range st.policies {
		if v == version {
			activated := at
			row.IsActive = true
			row.ActivatedAt = &activated
		} else {
			row.IsActive = false
		}
		st.policies[v] = row
	}
	return nil
}

type purchaseRepository struct{ v view }

func (r purchaseRepository) Create(_ context.Context, row domain.PurchaseUnit) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.purchases[row.PurchaseUnitID]; ok {
		return domain.ErrConflict
	}
	st.purchases[row.PurchaseUnitID] = row
	return nil
}

func (r purchaseRepository) GetByID(_ context.Context, purchaseUnitID string) (domain.PurchaseUnit, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.purchases[purchaseUnitID]
	if !ok {
		return domain.PurchaseUnit{}, domain.ErrNotFound
	}
	return row, nil
}

func (r purchaseRepository) Update(_ context.Context, row domain.PurchaseUnit, expect domain.PurchaseGuard) error {
	st, done := r.v.acquire()
	defer done()
	current, ok := st.purchases[row.PurchaseUnitID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Guard() != expect {
		return domain.ErrConcurrencyConflict
	}
	st.purchases[row.PurchaseUnitID] = row
	return nil
}

func (r purchaseRepository) ListDeliveredBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.PurchaseUnit, error) {
	st, done := r.v.acquire()
	defer done()
	var out []domain.PurchaseUnit
	for _, row := range st.purchases {
		if row.Status == domain.PurchaseStatusDelivered && row.DeliveredAt != nil && !row.DeliveredAt.After(cutoff) {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b domain.PurchaseUnit) int { return a.DeliveredAt.Compare(*b.DeliveredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type holdRepository struct{ v view }

func (r holdRepository) Create(_ context.Context, row domain.EscrowHold) error {
	st, done := r.v.acquire()
	defer done()
	for _, h := range st.holds {
		if h.PurchaseUnitID == row.PurchaseUnitID {
			return domain.ErrHoldExists
		}
	}
	if _, ok := st.holds[row.HoldID]; ok {
		return domain.ErrConflict
	}
	st.holds[row.HoldID] = row
	return nil
}

func (r holdRepository) GetByID(_ context.Context, holdID string) (domain.EscrowHold, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.holds[holdID]
	if !ok {
		return domain.EscrowHold{}, domain.ErrNotFound
	}
	return row, nil
}

func (r holdRepository) GetByPurchaseUnitID(_ context.Context, purchaseUnitID string) (domain.EscrowHold, error) {
	st, done := r.v.acquire()
	defer done()
	for _, row := range st.holds {
		if row.PurchaseUnitID == purchaseUnitID {
			return row, nil
		}
	}
	return domain.EscrowHold{}, domain.ErrNotFound
}

func (r holdRepository) Update(_ context.Context, row domain.EscrowHold, expect domain.HoldStatus) error {
	st, done := r.v.acquire()
	defer done()
	current, ok := st.holds[row.HoldID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expect {
		return domain.ErrConcurrencyConflict
	}
	st.holds[row.HoldID] = row
	return nil
}

func (r holdRepository) ListBySeller(_ context.Context, sellerID string) ([]domain.EscrowHold, error) {
	st, done := r.v.acquire()
	defer done()
	return sortedHolds(st, func(h domain.EscrowHold) bool { return h.SellerID == sellerID }), nil
}

func (r holdRepository) ListPayable(_ context.Context, sellerID string, now time.Time) ([]domain.EscrowHold, error) {
	st, done := r.v.acquire()
	defer done()
	return sortedHolds(st, func(h domain.EscrowHold) bool { return h.SellerID == sellerID && h.Payable(now) }), nil
}

func (r holdRepository) ListSellersWithPayable(_ context.Context, now time.Time, limit int) ([]string, error) {
	st, done := r.v.acquire()
	defer done()
	seen := map[string]bool{}
	var out []string
	for _, h := range st.holds {
		if h.Payable(now) && !seen[h.SellerID] {
			seen[h.SellerID] = true
			out = append(out, h.SellerID)
		}
	}
	slices.Sort(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r holdRepository) AttachPayout(_ context.Context, holdIDs []string, payoutID string, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	for _, id := range holdIDs {
		h, ok := st.holds[id]
		if !ok {
			return domain.ErrNotFound
		}
		if h.Status != domain.HoldStatusReleased || h.PayoutID != nil {
			return domain.ErrConcurrencyConflict
		}
	}
	for _, id := range holdIDs {
		h := st.holds[id]
		pid := payoutID
		h.PayoutID = &pid
		h.UpdatedAt = at
		st.holds[id] = h
	}
	return nil
}

func (r holdRepository) DetachPayout(_ context.Context, payoutID string, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	for id, h := range st.holds {
		if h.PayoutID != nil && *h.PayoutID == payoutID {
			h.PayoutID = nil
			h.UpdatedAt = at
			st.holds[id] = h
		}
	}
	return nil
}

func (r holdRepository) ListByPayoutID(_ context.Context, payoutID string) ([]domain.EscrowHold, error) {
	st, done := r.v.acquire()
	defer done()
	return sortedHolds(st, func(h domain.EscrowHold) bool { return h.PayoutID != nil && *h.PayoutID == payoutID }), nil
}

func sortedHolds(st *state, keep func(domain.EscrowHold) bool) []domain.EscrowHold {
	var out []domain.EscrowHold
	for _, h := range st.holds {
		if keep(h) {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b domain.EscrowHold) int {
		if c := a.HeldAt.Compare(b.HeldAt); c != 0 {
			return c
		}
		return cmp.Compare(a.HoldID, b.HoldID)
	})
	return out
}

type refundRepository struct{ v view }

func (r refundRepository) Create(_ context.Context, row domain.Refund) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.refunds[row.RefundID]; ok {
		return domain.ErrConflict
	}
	st.refunds[row.RefundID] = row
	return nil
}

func (r refundRepository) GetByID(_ context.Context, refundID string) (domain.Refund, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.refunds[refundID]
	if !ok {
		return domain.Refund{}, domain.ErrNotFound
	}
	return row, nil
}

func (r refundRepository) Update(_ context.Context, row domain.Refund, expect domain.RefundStatus) error {
	st, done := r.v.acquire()
	defer done()
	current, ok := st.refunds[row.RefundID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expect {
		return domain.ErrConcurrencyConflict
	}
	st.refunds[row.RefundID] = row
	return nil
}

func (r refundRepository) ListByPurchaseUnitID(_ context.Context, purchaseUnitID string) ([]domain.Refund, error) {
	st, done := r.v.acquire()
	defer done()
	var out []domain.Refund
	for _, row := range st.refunds {
		if row.PurchaseUnitID == purchaseUnitID {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b domain.Refund) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type payoutRepository struct{ v view }

func (r payoutRepository) Create(_ context.Context, row domain.SellerPayout) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.payouts[row.PayoutID]; ok {
		return domain.ErrConflict
	}
	st.payouts[row.PayoutID] = row
	return nil
}

func (r payoutRepository) GetByID(_ context.Context, payoutID string) (domain.SellerPayout, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.payouts[payoutID]
	if !ok {
		return domain.SellerPayout{}, domain.ErrNotFound
	}
	return row, nil
}

func (r payoutRepository) Update(_ context.Context, row domain.SellerPayout, expect domain.PayoutStatus) error {
	st, done := r.v.acquire()
	defer done()
	current, ok := st.payouts[row.PayoutID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expect {
		return domain.ErrConcurrencyConflict
	}
	st.payouts[row.PayoutID] = row
	return nil
}

func (r payoutRepository) ListBySeller(_ context.Context, sellerID string, limit int) ([]domain.SellerPayout, error) {
	st, done := r.v.acquire()
	defer done()
	var out []domain.SellerPayout
	for _, row := range st.payouts {
		if row.SellerID == sellerID {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b domain.SellerPayout) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r payoutRepository) StatusByIDs(_ context.Context, payoutIDs []string) (map[string]domain.PayoutStatus, error) {
	st, done := r.v.acquire()
	defer done()
	out := make(map[string]domain.PayoutStatus, len(payoutIDs))
	for _, id := range payoutIDs {
		if row, ok := st.payouts[id]; ok {
			out[id] = row.Status
		}
	}
	return out, nil
}

type disputeRepository struct{ v view }

func (r disputeRepository) Create(_ context.Context, row domain.Dispute) error {
	st, done := r.v.acquire()
	defer done()
	for _, d := range st.disputes {
		if d.PurchaseUnitID == row.PurchaseUnitID && d.Active() {
			return domain.ErrDisputeExists
		}
	}
	st.disputes[row.DisputeID] = row
	return nil
}

func (r disputeRepository) GetByID(_ context.Context, disputeID string) (domain.Dispute, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.disputes[disputeID]
	if !ok {
		return domain.Dispute{}, domain.ErrNotFound
	}
	return row, nil
}

func (r disputeRepository) GetActiveByPurchaseUnitID(_ context.Context, purchaseUnitID string) (domain.Dispute, error) {
	st, done := r.v.acquire()
	defer done()
	for _, d := range st.disputes {
		if d.PurchaseUnitID == purchaseUnitID && d.Active() {
			return d, nil
		}
	}
	return domain.Dispute{}, domain.ErrNotFound
}

func (r disputeRepository) Update(_ context.Context, row domain.Dispute, expect domain.DisputeStatus) error {
	st, done := r.v.acquire()
	defer done()
	current, ok := st.disputes[row.DisputeID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expect {
		return domain.ErrConcurrencyConflict
	}
	st.disputes[row.DisputeID] = row
	return nil
}

type gatewayEventRepository struct{ v view }

func gatewayEventKey(eventType domain.GatewayEventType, gatewayRef string) string {
	return string(eventType) + "|" + gatewayRef
}

func (r gatewayEventRepository) Record(_ context.Context, row domain.GatewayEventRecord) error {
	st, done := r.v.acquire()
	defer done()
	key := gatewayEventKey(row.Type, row.GatewayRef)
	if _, ok := st.gatewayEvents[key]; ok {
		return domain.ErrDuplicateEvent
	}
	st.gatewayEvents[key] = row
	return nil
}

func (r gatewayEventRepository) Supersede(_ context.Context, row domain.GatewayEventRecord, expect string) error {
	st, done := r.v.acquire()
	defer done()
	key := gatewayEventKey(row.Type, row.GatewayRef)
	current, ok := st.gatewayEvents[key]
	if !ok || current.Status != expect {
		return domain.ErrDuplicateEvent
	}
	st.gatewayEvents[key] = row
	return nil
}

func (r gatewayEventRepository) Get(_ context.Context, eventType domain.GatewayEventType, gatewayRef string) (domain.GatewayEventRecord, error) {
	st, done := r.v.acquire()
	defer done()
	row, ok := st.gatewayEvents[gatewayEventKey(eventType, gatewayRef)]
	if !ok {
		return domain.GatewayEventRecord{}, domain.ErrNotFound
	}
	return row, nil
}

type outboxRepository struct{ v view }

func (r outboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.outbox[event.EventID]; ok {
		return domain.ErrConflict
	}
	st.outbox[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		EventClass:   event.EventClass,
		PartitionKey: event.PartitionKey,
		Payload:      slices.Clone(event.Payload),
		FirstSeenAt:  event.OccurredAt,
	}
	st.outboxOrder = append(st.outboxOrder, event.EventID)
	return nil
}

func (r outboxRepository) FetchUnpublished(_ context.Context, limit, maxRetries int) ([]ports.OutboxRecord, error) {
	st, done := r.v.acquire()
	defer done()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range st.outboxOrder {
		record := st.outbox[id]
		if record.PublishedAt != nil || (maxRetries > 0 && record.RetryCount >= maxRetries) {
			continue
		}
		out = append(out, record)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepository) MarkPublished(_ context.Context, outboxID string, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	record, ok := st.outbox[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	published := at
	record.PublishedAt = &published
	st.outbox[outboxID] = record
	return nil
}

func (r outboxRepository) MarkFailed(_ context.Context, outboxID string, errMsg string, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	record, ok := st.outbox[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	failedAt := at
	msg := errMsg
	record.RetryCount++
	record.LastError = &msg
	record.LastErrorAt = &failedAt
	st.outbox[outboxID] = record
	return nil
}

type idempotencyRepository struct{ v view }

func (r idempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	st, done := r.v.acquire()
	defer done()
	record, ok := st.idempotency[key]
	if !ok {
		return nil, nil
	}
	if !record.ExpiresAt.After(now) {
		delete(st.idempotency, key)
		return nil, nil
	}
	clone := record
	clone.ResponseBody = slices.Clone(record.ResponseBody)
	return &clone, nil
}

func (r idempotencyRepository) Reserve(_ context.Context, key, requestHash string, now, expiresAt time.Time) error {
	st, done := r.v.acquire()
	defer done()
	if current, ok := st.idempotency[key]; ok && current.ExpiresAt.After(now) {
		return domain.ErrConflict
	}
	st.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "reserved",
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r idempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	st, done := r.v.acquire()
	defer done()
	record, ok := st.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	record.Status = "completed"
	record.ResponseCode = responseCode
	record.ResponseBody = slices.Clone(responseBody)
	if floor := at.Add(7 * 24 * time.Hour); record.ExpiresAt.Before(floor) {
		record.ExpiresAt = floor
	}
	st.idempotency[key] = record
	return nil
}
