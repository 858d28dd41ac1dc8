package rating

import "strconv"

// formatFixed renders v with exactly decimals digits after the point,
// e.g. formatFixed(50, 2) == "50.00".
func formatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
