package replenishment

import (
	"math"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

// Classify places stock against its thresholds. BelowMin is checked first,
// so a record with Min > Max and stock between them is BelowMin.
func Classify(stock, minQty, maxQty float64) domain.Status {
	switch {
	case stock < minQty:
		return domain.StatusBelowMin
	case stock > maxQty:
		return domain.StatusAboveMax
	default:
		return domain.StatusInRange
	}
}

// Calculate derives the replenishment quantities for one threshold given
// the counted stock.
func Calculate(th domain.LocationProductThreshold, stock float64) domain.ReplenishmentRecord {
	// 1. Shortage to reorder point, clipped at zero
	shortage := math.Max(0, th.Min-stock)

	// 2. Purchase to target level, clipped at zero
	purchase := math.Max(0, th.Max-stock)

	return domain.ReplenishmentRecord{
		Location:      th.Location,
		Product:       th.Product,
		Stock:         stock,
		Min:           th.Min,
		Max:           th.Max,
		ShortageToMin: shortage,
		PurchaseToMax: purchase,
		Status:        Classify(stock, th.Min, th.Max),
		LocationKey:   th.LocationKey,
		ProductKey:    th.ProductKey,
	}
}
