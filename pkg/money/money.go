// Package money formats minor-unit amounts for user-facing messages.
// All balances, prices and commissions are stored as int64 pesewas
// (GHS has two decimal places), so arithmetic stays exact.
package money

import "fmt"

// FormatGHS renders a minor-unit amount as "GHS 12.34".
func FormatGHS(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%sGHS %d.%02d", sign, minor/100, minor%100)
}
