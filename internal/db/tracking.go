package db

import (
	"context"

	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
)

// AddTrackingEvents zapisuje zdarzenia jednym INSERT-em.
func (h *Handle) AddTrackingEvents(ctx context.Context, storeID uint, events []reconcile.TrackingEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]TrackingEvent, len(events))
	for i, e := range events {
		rows[i] = TrackingEvent{
			StoreID:     storeID,
			SessionID:   e.SessionID,
			EventType:   string(e.Type),
			OrderNumber: e.OrderNumber,
			ProductName: e.ProductName,
			CreatedAt:   e.Time,
		}
	}
	return h.ctx(ctx).CreateInBatches(rows, 200).Error
}

// ListTrackingEvents – najnowsze pierwsze; limit <= 0 = wszystkie.
func (h *Handle) ListTrackingEvents(ctx context.Context, storeID uint, limit int) ([]reconcile.TrackingEvent, error) {
	q := h.ctx(ctx).Where("store_id = ?", storeID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []TrackingEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]reconcile.TrackingEvent, len(rows))
	for i, r := range rows {
		out[i] = reconcile.TrackingEvent{
			Time:        r.CreatedAt,
			OrderNumber: r.OrderNumber,
			ProductName: r.ProductName,
			Type:        reconcile.EventType(r.EventType),
			SessionID:   r.SessionID,
		}
	}
	return out, nil
}

// CleanupTrackingEvents kasuje historię zdarzeń sklepu.
func (h *Handle) CleanupTrackingEvents(ctx context.Context, storeID uint) (int64, error) {
	res := h.ctx(ctx).Where("store_id = ?", storeID).Delete(&TrackingEvent{})
	return res.RowsAffected, res.Error
}
