// Package normalize canonicalizes free-text location and product names so the
// same real-world entity matches across differently authored spreadsheets.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nullLike = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"nat":  {},
	"<na>": {},
	"n/a":  {},
}

var (
	trailingParenthetical = regexp.MustCompile(`\s*\([^()]*\)$`)
	whitespaceRun         = regexp.MustCompile(`\s+`)

	groupedThousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	decimalComma     = regexp.MustCompile(`^[+-]?\d*,\d{1,2}$`)
)

// Text returns the canonical display form of s. The boolean is false when s
// is blank or a null marker, or becomes empty after normalization.
func Text(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, ok := nullLike[strings.ToLower(s)]; ok {
		return "", false
	}

	s = trailingParenthetical.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Key returns the upper-cased matching key for s.
func Key(s string) (string, bool) {
	text, ok := Text(s)
	if !ok {
		return "", false
	}
	return strings.ToUpper(text), true
}

// FoldHeader lower-cases a column header and strips diacritics, so that
// "Ubicación" and "ubicacion" compare equal.
func FoldHeader(s string) string {
	// transform.Chain keeps internal state; build a fresh one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = whitespaceRun.ReplaceAllString(strings.TrimSpace(folded), " ")
	return strings.ToLower(folded)
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

// ColumnName folds a header and drops separators: "Unit Cost", "unit_cost"
// and "UNIT-COST" all become "unitcost".
func ColumnName(name string) string {
	return columnNameSanitizer.Replace(FoldHeader(name))
}

// Number rewrites a numeric cell into the form strconv and decimal parse.
// Spaces are dropped and comma thousands groups ("1,234,567") are removed. A
// single comma followed by one or two digits ("2,5") is a decimal separator.
// Any other comma is left in place, so the result fails to parse.
func Number(s string) string {
	v := strings.Join(strings.Fields(s), "")
	switch {
	case groupedThousands.MatchString(v):
		return strings.ReplaceAll(v, ",", "")
	case decimalComma.MatchString(v):
		return strings.Replace(v, ",", ".", 1)
	}
	return v
}
