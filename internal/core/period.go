package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Daily   Period = "Daily"
	Weekly  Period = "Weekly"
	Monthly Period = "Monthly"
	Yearly  Period = "Yearly"
)

// Period selects the time window a view is computed over.
type Period string

var ErrUnknownPeriod = errors.New("unknown period")

// Periods lists every selector in display order.
func Periods() []Period {
	return []Period{Daily, Weekly, Monthly, Yearly}
}

// ParsePeriod accepts a selector name in any case.
func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods() {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}
