package postgres

import (
	"context"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gatewayEventRepository struct {
	db *gorm.DB
}

func (r *gatewayEventRepository) Record(ctx context.Context, row domain.GatewayEventRecord) error {
	model := gatewayEventModel{
		EventType:      string(row.Type),
		GatewayRef:     row.GatewayRef,
		Gateway:        row.Gateway,
		Status:         row.Status,
		PurchaseUnitID: row.PurchaseUnitID,
		Outcome:        string(row.Outcome),
		Detail:         row.Detail,
		ReceivedAt:     row.ReceivedAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

func (r *gatewayEventRepository) Supersede(ctx context.Context, row domain.GatewayEventRecord, expect string) error {
	res := r.db.WithContext(ctx).
		Model(&gatewayEventModel{}).
		Where("event_type = ? AND gateway_ref = ? AND status = ?", string(row.Type), row.GatewayRef, expect).
		Updates(map[string]any{
			"gateway":          row.Gateway,
			"status":           row.Status,
			"purchase_unit_id": row.PurchaseUnitID,
			"outcome":          string(row.Outcome),
			"detail":           row.Detail,
			"received_at":      row.ReceivedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

func (r *gatewayEventRepository) Get(ctx context.Context, eventType domain.GatewayEventType, gatewayRef string) (domain.GatewayEventRecord, error) {
	var model gatewayEventModel
	if err := r.db.WithContext(ctx).
		Where("event_type = ? AND gateway_ref = ?", string(eventType), gatewayRef).
		Take(&model).Error; err != nil {
		return domain.GatewayEventRecord{}, notFound(err)
	}
	return domain.GatewayEventRecord{
		GatewayRef:     model.GatewayRef,
		Gateway:        model.Gateway,
		Type:           domain.GatewayEventType(model.EventType),
		Status:         model.Status,
		PurchaseUnitID: model.PurchaseUnitID,
		Outcome:        domain.GatewayOutcome(model.Outcome),
		Detail:         model.Detail,
		ReceivedAt:     model.ReceivedAt,
	}, nil
}
