package replenishment

import (
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
)

// Role is a semantic column required from the stock extract.
type Role string

const (
	RoleLocation Role = "Location"
	RoleProduct  Role = "Product"
	RoleQuantity Role = "Quantity"
)

// StockRoles are resolved in this order; a column claimed by an earlier role
// is not offered to a later one.
var StockRoles = []Role{RoleLocation, RoleProduct, RoleQuantity}

// ColumnResolver maps roles to header indexes. Implementations return a
// *domain.SchemaError naming every role they could not place.
type ColumnResolver interface {
	Resolve(header []string, roles []Role) (map[Role]int, error)
}

// ExplicitResolver matches declared column names exactly, ignoring case and
// surrounding whitespace.
type ExplicitResolver struct {
	Names map[Role]string
}

func (r ExplicitResolver) Resolve(header []string, roles []Role) (map[Role]int, error) {
	out := make(map[Role]int, len(roles))
	used := make(map[int]bool, len(roles))
	var missing []string
	for _, role := range roles {
		idx := r.index(header, role, used)
		if idx < 0 {
			missing = append(missing, missingLabel(role, r.Names[role]))
			continue
		}
		out[role] = idx
		used[idx] = true
	}
	if len(missing) > 0 {
		return nil, unmatched(missing)
	}
	return out, nil
}

func (r ExplicitResolver) index(header []string, role Role, used map[int]bool) int {
	name := strings.TrimSpace(r.Names[role])
	if name == "" {
		return -1
	}
	for i, h := range header {
		if !used[i] && strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// DefaultHeuristicTerms are matched as substrings of accent-folded,
// lower-cased headers, in order of preference.
var DefaultHeuristicTerms = map[Role][]string{
	RoleLocation: {"location", "ubicacion", "almacen", "warehouse", "apartamento", "apartment", "store", "site"},
	RoleProduct:  {"product", "producto", "articulo", "item", "sku", "descripcion", "description"},
	RoleQuantity: {"quantity", "cantidad", "qty", "unidades", "units", "existencia", "stock"},
}

// HeuristicResolver locates columns by substring terms.
type HeuristicResolver struct {
	Terms map[Role][]string
}

func (r HeuristicResolver) Resolve(header []string, roles []Role) (map[Role]int, error) {
	out := make(map[Role]int, len(roles))
	used := make(map[int]bool, len(roles))
	var missing []string
	for _, role := range roles {
		idx := r.index(header, role, used)
		if idx < 0 {
			missing = append(missing, string(role))
			continue
		}
		out[role] = idx
		used[idx] = true
	}
	if len(missing) > 0 {
		return nil, unmatched(missing)
	}
	return out, nil
}

func (r HeuristicResolver) index(header []string, role Role, used map[int]bool) int {
	terms := r.Terms[role]
	if terms == nil {
		terms = DefaultHeuristicTerms[role]
	}
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = normalize.FoldHeader(h)
	}
	for _, term := range terms {
		term = normalize.FoldHeader(term)
		if term == "" {
			continue
		}
		for i, h := range folded {
			if !used[i] && strings.Contains(h, term) {
				return i
			}
		}
	}
	return -1
}

// FallbackResolver validates every declared name strictly and uses the
// heuristic only for roles with no declared name.
type FallbackResolver struct {
	Explicit  ExplicitResolver
	Heuristic HeuristicResolver
}

func (r FallbackResolver) Resolve(header []string, roles []Role) (map[Role]int, error) {
	out := make(map[Role]int, len(roles))
	used := make(map[int]bool, len(roles))
	var missing []string

	// Declared names claim their columns before the heuristic runs.
	var undeclared []Role
	for _, role := range roles {
		name := strings.TrimSpace(r.Explicit.Names[role])
		if name == "" {
			undeclared = append(undeclared, role)
			continue
		}
		idx := r.Explicit.index(header, role, used)
		if idx < 0 {
			missing = append(missing, missingLabel(role, name))
			continue
		}
		out[role] = idx
		used[idx] = true
	}
	for _, role := range undeclared {
		idx := r.Heuristic.index(header, role, used)
		if idx < 0 {
			missing = append(missing, string(role))
			continue
		}
		out[role] = idx
		used[idx] = true
	}
	if len(missing) > 0 {
		return nil, unmatched(missing)
	}
	return out, nil
}

// NewColumnResolver builds the resolver for a column mapping. With no
// declared names and fallback enabled it is purely heuristic; with fallback
// disabled every role must be declared.
func NewColumnResolver(names map[Role]string, heuristicFallback bool) ColumnResolver {
	explicit := ExplicitResolver{Names: names}
	if !heuristicFallback {
		return explicit
	}
	declared := false
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			declared = true
			break
		}
	}
	if !declared {
		return HeuristicResolver{}
	}
	return FallbackResolver{Explicit: explicit}
}

func missingLabel(role Role, name string) string {
	if strings.TrimSpace(name) == "" {
		return string(role)
	}
	return string(role) + " (" + strings.TrimSpace(name) + ")"
}

func unmatched(roles []string) error {
	return &domain.SchemaError{
		Source:  "stock",
		Reason:  "required columns not found",
		Columns: roles,
	}
}
