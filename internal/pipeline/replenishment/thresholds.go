package replenishment

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// ThresholdLayout describes the fixed leading columns of the wide sheet.
type ThresholdLayout struct {
	// LeadingColumns precede the first (min, max) pair: accommodation unit,
	// location and capacity.
	LeadingColumns int
	// LocationIndex is the leading column holding the location name.
	LocationIndex int
	// LeadingPrefixes optionally checks each leading header by
	// case-insensitive prefix. Empty entries are not checked.
	LeadingPrefixes []string
}

// DefaultThresholdLayout is the unit / location / capacity layout.
func DefaultThresholdLayout() ThresholdLayout {
	return ThresholdLayout{LeadingColumns: 3, LocationIndex: 1}
}

// columnPair is one product's (min, max) column indexes in the wide sheet.
type columnPair struct {
	Product    string
	ProductKey string
	MinIndex   int
	MaxIndex   int
}

var disambiguationSuffix = regexp.MustCompile(`\.\d+$`)

// StripDisambiguationSuffix removes a trailing ".N" that spreadsheet exports
// append to repeated header names ("Coffee.1" -> "Coffee").
func StripDisambiguationSuffix(header string) string {
	return disambiguationSuffix.ReplaceAllString(strings.TrimSpace(header), "")
}

// pairColumns walks the columns after the leading block two at a time.
func pairColumns(header []string, leading int) ([]columnPair, error) {
	remaining := len(header) - leading
	if remaining <= 0 {
		return nil, &domain.SchemaError{Source: "thresholds", Reason: "no product min/max column pairs"}
	}
	if remaining%2 != 0 {
		return nil, &domain.SchemaError{
			Source:  "thresholds",
			Reason:  fmt.Sprintf("odd number of product columns (%d), cannot pair min/max", remaining),
			Columns: []string{headerLabel(header, len(header)-1)},
		}
	}

	pairs := make([]columnPair, 0, remaining/2)
	for minIdx := leading; minIdx+1 < len(header); minIdx += 2 {
		product, ok := normalize.Text(StripDisambiguationSuffix(header[minIdx]))
		if !ok {
			return nil, &domain.SchemaError{
				Source:  "thresholds",
				Reason:  "blank product header",
				Columns: []string{headerLabel(header, minIdx)},
			}
		}
		pairs = append(pairs, columnPair{
			Product:    product,
			ProductKey: strings.ToUpper(product),
			MinIndex:   minIdx,
			MaxIndex:   minIdx + 1,
		})
	}
	return pairs, nil
}

func headerLabel(header []string, idx int) string {
	if idx >= 0 && idx < len(header) && strings.TrimSpace(header[idx]) != "" {
		return fmt.Sprintf("column %d (%s)", idx+1, strings.TrimSpace(header[idx]))
	}
	return fmt.Sprintf("column %d", idx+1)
}

// ParseThresholds reshapes the wide min/max sheet into one record per
// (location, product), summing duplicates. It returns nil on any schema error.
func ParseThresholds(t table.Table, layout ThresholdLayout) (*ThresholdTable, error) {
	if layout.LeadingColumns <= 0 {
		layout.LeadingColumns = DefaultThresholdLayout().LeadingColumns
		if layout.LocationIndex == 0 {
			layout.LocationIndex = DefaultThresholdLayout().LocationIndex
		}
	}
	if layout.LocationIndex < 0 || layout.LocationIndex >= layout.LeadingColumns {
		return nil, fmt.Errorf("threshold layout: location index %d outside %d leading columns",
			layout.LocationIndex, layout.LeadingColumns)
	}

	header := trimEmptyTrailingColumns(t)
	if len(header) < layout.LeadingColumns {
		return nil, &domain.SchemaError{
			Source: "thresholds",
			Reason: fmt.Sprintf("expected at least %d leading columns, found %d", layout.LeadingColumns, len(header)),
		}
	}
	if err := checkLeadingPrefixes(header, layout); err != nil {
		return nil, err
	}

	pairs, err := pairColumns(header, layout.LeadingColumns)
	if err != nil {
		return nil, err
	}

	out := &ThresholdTable{index: make(map[pairKey]int), Products: len(pairs)}
	for row := range t.Rows {
		location, ok := normalize.Text(t.Cell(row, layout.LocationIndex))
		if !ok {
			out.DroppedRows++
			continue
		}
		locationKey := strings.ToUpper(location)

		for _, p := range pairs {
			key := pairKey{Location: locationKey, Product: p.ProductKey}
			minQty := ParseQuantity(t.Cell(row, p.MinIndex))
			maxQty := ParseQuantity(t.Cell(row, p.MaxIndex))

			if i, seen := out.index[key]; seen {
				out.records[i].Min += minQty
				out.records[i].Max += maxQty
				continue
			}
			out.index[key] = len(out.records)
			out.records = append(out.records, domain.LocationProductThreshold{
				Location:    location,
				Product:     p.Product,
				Min:         minQty,
				Max:         maxQty,
				LocationKey: locationKey,
				ProductKey:  p.ProductKey,
			})
		}
	}

	slices.SortFunc(out.records, func(a, b domain.LocationProductThreshold) int {
		return comparePairs(a.LocationKey, a.ProductKey, b.LocationKey, b.ProductKey)
	})
	for i, r := range out.records {
		out.index[pairKey{Location: r.LocationKey, Product: r.ProductKey}] = i
	}
	out.version = thresholdsVersion(out.records)

	return out, nil
}

func checkLeadingPrefixes(header []string, layout ThresholdLayout) error {
	var bad []string
	for i, prefix := range layout.LeadingPrefixes {
		if i >= layout.LeadingColumns {
			break
		}
		prefix = normalize.FoldHeader(prefix)
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(normalize.FoldHeader(header[i]), prefix) {
			bad = append(bad, headerLabel(header, i))
		}
	}
	if len(bad) > 0 {
		return &domain.SchemaError{Source: "thresholds", Reason: "unexpected leading column", Columns: bad}
	}
	return nil
}

// trimEmptyTrailingColumns ignores trailing columns that have neither a
// header nor any value, which spreadsheet exports often leave behind.
func trimEmptyTrailingColumns(t table.Table) []string {
	n := len(t.Header)
	for n > 0 && strings.TrimSpace(t.Header[n-1]) == "" && columnEmpty(t, n-1) {
		n--
	}
	return t.Header[:n]
}

func columnEmpty(t table.Table, col int) bool {
	for row := range t.Rows {
		if t.Cell(row, col) != "" {
			return false
		}
	}
	return true
}
