package utils

import (
	"fmt"
	"math"
	"strconv"
)

// Round rounds a monetary amount to cents.
func Round(value float64) float64 {
	return math.Round(value*100) / 100
}

// FormatAmount renders an amount the way remote gateways expect it on the
// wire, with exactly two decimal places.
func FormatAmount(value float64) string {
	return fmt.Sprintf("%.2f", Round(value))
}

func ParseAmount(value string) (float64, error) {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %v", value, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("invalid amount %q: negative", value)
	}
	return Round(amount), nil
}
