package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"travelshare/internal/core"
)

var balanceHeader = []any{"User ID", "First name", "Last name", "Total paid", "Total should pay", "Net"}

var transferHeader = []any{"From", "To", "Amount"}

// ReportRows lays out a report as sheet rows: a summary block, one row per
// balance, then the suggested transfers. Amounts are rendered with two
// decimals so USER_ENTERED parses them as numbers.
func ReportRows(r core.ReportSummary) [][]any {
	names := make(map[int64]string, len(r.UserBalances))
	rows := [][]any{
		{"Trip", strconv.FormatInt(r.TripID, 10)},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total expenses", core.FormatAmount(r.TotalExpenses)},
		{},
		balanceHeader,
	}
	for _, b := range r.UserBalances {
		names[b.UserID] = strings.TrimSpace(b.FirstName + " " + b.LastName)
		rows = append(rows, []any{
			strconv.FormatInt(b.UserID, 10),
			b.FirstName,
			b.LastName,
			core.FormatAmount(b.TotalPaid),
			core.FormatAmount(b.TotalShouldPay),
			core.FormatAmount(b.Net),
		})
	}
	if len(r.Settlements) == 0 {
		return rows
	}
	rows = append(rows, []any{}, transferHeader)
	for _, t := range r.Settlements {
		rows = append(rows, []any{
			displayName(names, t.FromUserID),
			displayName(names, t.ToUserID),
			core.FormatAmount(t.Amount),
		})
	}
	return rows
}

func displayName(names map[int64]string, id int64) string {
	if n := names[id]; n != "" {
		return n
	}
	return fmt.Sprintf("User %d", id)
}

// sheetTitle returns "<prefix> <tripID>".
func sheetTitle(prefix string, tripID int64) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Trip"
	}
	return fmt.Sprintf("%s %d", prefix, tripID)
}

func width(rows [][]any) int {
	w := 1
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// columnName converts a 1-based column index to A1 notation letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
