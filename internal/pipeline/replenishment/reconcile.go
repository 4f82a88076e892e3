package replenishment

import "github.com/andresuchdata/replenish/backend-go/internal/domain"

// Reconcile left-joins thresholds onto stock. Every threshold yields exactly
// one record; a threshold with no counted stock is reconciled at Stock = 0.
// Stock with no threshold is not reported here (see UnmatchedStock).
// Output follows the threshold table's (location, product) key order.
func Reconcile(th *ThresholdTable, st *StockTable) []domain.ReplenishmentRecord {
	if th == nil {
		return nil
	}

	out := make([]domain.ReplenishmentRecord, 0, len(th.records))
	for _, t := range th.records {
		var stock float64
		if s, ok := st.Lookup(t.LocationKey, t.ProductKey); ok {
			stock = s.Stock
		}
		out = append(out, Calculate(t, stock))
	}
	return out
}

// UnmatchedStock lists counted stock whose (location, product) has no threshold.
func UnmatchedStock(th *ThresholdTable, st *StockTable) []domain.StockRecord {
	var out []domain.StockRecord
	if st == nil {
		return out
	}
	for _, s := range st.records {
		if _, ok := th.Lookup(s.LocationKey, s.ProductKey); !ok {
			out = append(out, s)
		}
	}
	return out
}
