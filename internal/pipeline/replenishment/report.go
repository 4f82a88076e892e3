package replenishment

import "github.com/andresuchdata/replenish/backend-go/internal/domain"

// Result bundles every table derived from one reconciliation.
type Result struct {
	Detail     []domain.ReplenishmentRecord
	Products   []domain.ProductSummary
	Actionable []domain.ProductSummary
	LowStock   []domain.LowStockRow
	Locations  []domain.LocationSummary
	CostLines  []domain.ProductCostLine
	Suppliers  []domain.SupplierSummary
	Unmatched  []domain.StockRecord
}

// Evaluate runs reconciliation and every rollup. The cost join is fed the
// actionable products, so suppliers only carry what is actually bought.
func Evaluate(th *ThresholdTable, st *StockTable, costs CostLookup, order ProductOrder) Result {
	detail := Reconcile(th, st)
	products := SummarizeByProduct(detail, order)
	actionable := Actionable(products)
	lines := JoinCosts(actionable, costs)

	return Result{
		Detail:     detail,
		Products:   products,
		Actionable: actionable,
		LowStock:   LowStock(detail),
		Locations:  SummarizeByLocation(detail),
		CostLines:  lines,
		Suppliers:  SummarizeBySupplier(lines),
		Unmatched:  UnmatchedStock(th, st),
	}
}
