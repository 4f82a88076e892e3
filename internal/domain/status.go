package domain

import "strings"

// Status classifies a record's stock against its thresholds.
type Status string

const (
	StatusBelowMin Status = "BelowMin"
	StatusInRange  Status = "InRange"
	StatusAboveMax Status = "AboveMax"
)

var statusLabels = map[Status]string{
	StatusBelowMin: "Below minimum",
	StatusInRange:  "In range",
	StatusAboveMax: "Above maximum",
}

var statusCodes = map[string]Status{
	"belowmin": StatusBelowMin,
	"inrange":  StatusInRange,
	"abovemax": StatusAboveMax,
}

func (s Status) String() string {
	return string(s)
}

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// ParseStatus returns the status for a given name (case-insensitive,
// separators ignored, so "below_min" and "Below Min" both parse).
func ParseStatus(name string) (Status, bool) {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	status, ok := statusCodes[key]

	return status, ok
}
