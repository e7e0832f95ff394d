package provider

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount parses a vendor amount string. Unparseable and non-finite
// values ("NaN", "Inf") read as 0.
func ParseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return FiniteOrZero(f)
}

// FiniteOrZero returns v, or 0 when v is NaN or infinite
func FiniteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
