// Package core provides the travelshare domain model.
//
// This file contains helpers for parsing and comparing monetary amounts.
// Amounts are decimal.Decimal values so equal splits stay exact where possible.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference treated as equal when comparing
// amounts produced by division.
var Tolerance = decimal.New(1, -9)

// ParseAmount converts a user-entered string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs, blanks, zero and malformed numbers are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("90")     -> 90, nil
//	ParseAmount("12,50")  -> 12.5, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ApproxEqual reports whether a and b differ by at most Tolerance.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
