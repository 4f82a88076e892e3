// backend-go/internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationProductThreshold is the min/max target for one product at one location.
type LocationProductThreshold struct {
	Location    string  `json:"location"`
	Product     string  `json:"product"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	LocationKey string  `json:"-"`
	ProductKey  string  `json:"-"`
}

// StockRecord is the counted stock for one product at one location.
type StockRecord struct {
	Location    string  `json:"location"`
	Product     string  `json:"product"`
	Stock       float64 `json:"stock"`
	LocationKey string  `json:"-"`
	ProductKey  string  `json:"-"`
}

// ReplenishmentRecord is one row of the reconciliation detail table.
type ReplenishmentRecord struct {
	Location      string  `json:"location"`
	Product       string  `json:"product"`
	Stock         float64 `json:"stock"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	ShortageToMin float64 `json:"shortage_to_min"`
	PurchaseToMax float64 `json:"purchase_to_max"`
	Status        Status  `json:"status"`
	LocationKey   string  `json:"-"`
	ProductKey    string  `json:"-"`
}

// ProductSummary totals the purchase quantity of a product across locations.
type ProductSummary struct {
	Product         string  `json:"product"`
	TotalToPurchase float64 `json:"total_to_purchase"`
	ProductKey      string  `json:"-"`
}

// SupplierCostEntry is a row of the supplier cost catalogue.
type SupplierCostEntry struct {
	Product  string          `json:"product" db:"product"`
	Supplier string          `json:"supplier" db:"supplier"`
	UnitCost decimal.Decimal `json:"unit_cost" db:"unit_cost"`
}

// ProductCostLine is a product summary joined with its supplier cost.
type ProductCostLine struct {
	Product         string          `json:"product"`
	Supplier        string          `json:"supplier"`
	TotalToPurchase float64         `json:"total_to_purchase"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	LineCost        decimal.Decimal `json:"line_cost"`
	ProductKey      string          `json:"-"`
}

// SupplierSummary groups cost lines by supplier.
type SupplierSummary struct {
	Supplier   string          `json:"supplier"`
	TotalUnits float64         `json:"total_units"`
	SkuCount   int             `json:"sku_count"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

// LowStockRow aggregates below-min records for one product.
type LowStockRow struct {
	Product   string  `json:"product"`
	Locations int     `json:"locations"`
	Stock     float64 `json:"stock"`
	Min       float64 `json:"min"`
	Deficit   float64 `json:"deficit"`
}

// LocationSummary is the per-location rollup of the detail table.
type LocationSummary struct {
	Location        string  `json:"location"`
	Products        int     `json:"products"`
	BelowMin        int     `json:"below_min"`
	AboveMax        int     `json:"above_max"`
	TotalToPurchase float64 `json:"total_to_purchase"`
}

// StockVsMinRow is one bar of the stock versus minimum view.
type StockVsMinRow struct {
	Product  string  `json:"product"`
	Stock    float64 `json:"stock"`
	Min      float64 `json:"min"`
	BelowMin bool    `json:"below_min"`
}

// ReplenishmentReport is the result of one reconciliation run.
type ReplenishmentReport struct {
	ID                string                `json:"id"`
	GeneratedAt       time.Time             `json:"generated_at"`
	ThresholdsVersion string                `json:"thresholds_version"`
	SnapshotName      string                `json:"snapshot_name"`
	Detail            []ReplenishmentRecord `json:"detail"`
	Products          []ProductSummary      `json:"products"`
	Actionable        []ProductSummary      `json:"actionable"`
	LowStock          []LowStockRow         `json:"low_stock"`
	Locations         []LocationSummary     `json:"locations"`
	CostLines         []ProductCostLine     `json:"cost_lines"`
	Suppliers         []SupplierSummary     `json:"suppliers"`
	UnmatchedStock    int                   `json:"unmatched_stock"`
}
