package replenishment

import (
	"crypto/sha1"
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

// pairKey identifies a (location, product) pair by normalized keys.
type pairKey struct {
	Location string
	Product  string
}

// ThresholdTable is the long-format min/max table. It is read-only once
// ParseThresholds returns it and may be shared across goroutines.
type ThresholdTable struct {
	records []domain.LocationProductThreshold
	index   map[pairKey]int
	version string

	// DroppedRows counts sheet rows skipped for a blank location.
	DroppedRows int
	// Products is the number of (min, max) column pairs found.
	Products int
}

// Records returns a copy of the thresholds sorted by (location, product) key.
func (t *ThresholdTable) Records() []domain.LocationProductThreshold {
	if t == nil {
		return nil
	}
	return slices.Clone(t.records)
}

// Len is the number of distinct (location, product) pairs.
func (t *ThresholdTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Lookup finds the threshold for a normalized key pair.
func (t *ThresholdTable) Lookup(locationKey, productKey string) (domain.LocationProductThreshold, bool) {
	if t == nil {
		return domain.LocationProductThreshold{}, false
	}
	i, ok := t.index[pairKey{Location: locationKey, Product: productKey}]
	if !ok {
		return domain.LocationProductThreshold{}, false
	}
	return t.records[i], true
}

// Inverted lists thresholds whose aggregated Min exceeds Max.
func (t *ThresholdTable) Inverted() []domain.LocationProductThreshold {
	var out []domain.LocationProductThreshold
	if t == nil {
		return out
	}
	for _, r := range t.records {
		if r.Min > r.Max {
			out = append(out, r)
		}
	}
	return out
}

// Version is a content hash of the table, stable across reloads of the same data.
func (t *ThresholdTable) Version() string {
	if t == nil {
		return ""
	}
	return t.version
}

// StockTable is the long-format stock count for one snapshot.
type StockTable struct {
	records []domain.StockRecord
	index   map[pairKey]int

	// DroppedRows counts rows skipped for a blank location or product.
	DroppedRows int
}

// Records returns a copy of the stock rows sorted by (location, product) key.
func (t *StockTable) Records() []domain.StockRecord {
	if t == nil {
		return nil
	}
	return slices.Clone(t.records)
}

// Len is the number of distinct (location, product) pairs.
func (t *StockTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Lookup finds the counted stock for a normalized key pair.
func (t *StockTable) Lookup(locationKey, productKey string) (domain.StockRecord, bool) {
	if t == nil {
		return domain.StockRecord{}, false
	}
	i, ok := t.index[pairKey{Location: locationKey, Product: productKey}]
	if !ok {
		return domain.StockRecord{}, false
	}
	return t.records[i], true
}

func comparePairs(aLoc, aProd, bLoc, bProd string) int {
	if aLoc != bLoc {
		if aLoc < bLoc {
			return -1
		}
		return 1
	}
	switch {
	case aProd < bProd:
		return -1
	case aProd > bProd:
		return 1
	}
	return 0
}

func thresholdsVersion(records []domain.LocationProductThreshold) string {
	h := sha1.New()
	for _, r := range records {
		h.Write([]byte(r.LocationKey))
		h.Write([]byte{0})
		h.Write([]byte(r.ProductKey))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(r.Min, 'g', -1, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(r.Max, 'g', -1, 64)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
