package sheets

import (
	"context"

	"travelshare/internal/core"
)

// ReportWriter writes a trip report to a spreadsheet and returns the range
// it filled.
type ReportWriter interface {
	ExportReport(ctx context.Context, r core.ReportSummary) (rangeRef string, err error)
}
