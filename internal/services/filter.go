package services

import (
	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// ShouldNotify reports whether a user ignoring the given tiers has anything to see
// in the snapshot
func ShouldNotify(snap *models.Snapshot, ignored catalog.TierSet) bool {
	if snap.Empty() {
		return false
	}
	for _, it := range snap.Items {
		if !ignored.Has(it.Tier) {
			return true
		}
	}
	return false
}

// VisibleSubset returns a new snapshot with the items of ignored tiers removed.
// Item order is preserved, so the result stays grouped by tier.
func VisibleSubset(snap *models.Snapshot, ignored catalog.TierSet) *models.Snapshot {
	if snap == nil {
		return nil
	}
	out := &models.Snapshot{
		MessageID:  snap.MessageID,
		ObservedAt: snap.ObservedAt,
		Items:      make([]models.StockItem, 0, len(snap.Items)),
	}
	for _, it := range snap.Items {
		if !ignored.Has(it.Tier) {
			out.Items = append(out.Items, it)
		}
	}
	return out
}
