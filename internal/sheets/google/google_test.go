package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"travelshare/internal/core"
)

func sampleReport() core.ReportSummary {
	return core.ReportSummary{
		TripID:        7,
		TotalExpenses: decimal.NewFromInt(90),
		GeneratedAt:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		UserBalances: []core.UserBalance{
			{UserID: 1, FirstName: "Marko", LastName: "Horvat", TotalPaid: decimal.NewFromInt(90), TotalShouldPay: decimal.NewFromInt(30), Net: decimal.NewFromInt(60)},
			{UserID: 2, FirstName: "Ana", LastName: "Kovač", TotalShouldPay: decimal.NewFromInt(30), Net: decimal.NewFromInt(-30)},
			{UserID: 3, TotalShouldPay: decimal.NewFromInt(30), Net: decimal.NewFromInt(-30)},
		},
		Settlements: []core.Transfer{
			{FromUserID: 2, ToUserID: 1, Amount: decimal.NewFromInt(30)},
			{FromUserID: 3, ToUserID: 1, Amount: decimal.NewFromInt(30)},
		},
	}
}

func TestReportRows(t *testing.T) {
	rows := ReportRows(sampleReport())

	if rows[0][0] != "Trip" || rows[0][1] != "7" {
		t.Errorf("unexpected title row: %v", rows[0])
	}
	if rows[2][1] != "90.00" {
		t.Errorf("total = %v, want 90.00", rows[2][1])
	}
	if rows[4][0] != "User ID" {
		t.Errorf("expected balance header at row 5, got %v", rows[4])
	}
	marko := rows[5]
	if marko[0] != "1" || marko[3] != "90.00" || marko[4] != "30.00" || marko[5] != "60.00" {
		t.Errorf("unexpected balance row: %v", marko)
	}
	if rows[6][5] != "-30.00" {
		t.Errorf("debtor net = %v", rows[6][5])
	}

	last := rows[len(rows)-1]
	if last[0] != "User 3" || last[1] != "Marko Horvat" || last[2] != "30.00" {
		t.Errorf("unexpected transfer row: %v", last)
	}
	if len(rows) != 5+3+2+2 {
		t.Errorf("expected 12 rows, got %d", len(rows))
	}
}

func TestReportRowsWithoutTransfers(t *testing.T) {
	r := sampleReport()
	r.Settlements = nil
	rows := ReportRows(r)
	if len(rows) != 8 {
		t.Fatalf("expected no transfer block, got %d rows", len(rows))
	}
}

func TestSheetTitleAndColumns(t *testing.T) {
	if got := sheetTitle("Trip", 3); got != "Trip 3" {
		t.Errorf("sheetTitle = %q", got)
	}
	if got := sheetTitle("  ", 3); got != "Trip 3" {
		t.Errorf("blank prefix should default, got %q", got)
	}
	cases := map[int]string{1: "A", 6: "F", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for n, want := range cases {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
	if got := quoteSheet("Bob's trip"); got != "'Bob''s trip'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "s1"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "s1",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestExportReport_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "s1"}
	if _, err := c.ExportReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error without service")
	}
}

type fakeSheets struct {
	mu          sync.Mutex
	titles      []string
	added       []string
	cleared     int
	inputOption string
	updatePath  string
	written     [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		sheets := make([]*gsheet.Sheet, 0, len(f.titles))
		for _, title := range f.titles {
			sheets = append(sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(gsheet.Spreadsheet{SpreadsheetId: "s1", Sheets: sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"s1"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.cleared++
		_, _ = w.Write([]byte(`{"spreadsheetId":"s1"}`))
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.inputOption = r.URL.Query().Get("valueInputOption")
		f.updatePath = r.URL.Path
		f.written = vr.Values
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRange: "'Trip 7'!A1:F12"})
	default:
		http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "s1",
		SheetPrefix:   "Trip",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
		},
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestExportReport_CreatesSheetAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Summary"}}
	c := newTestClient(t, fake)

	ref, err := c.ExportReport(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("ExportReport() error = %v", err)
	}
	if ref != "'Trip 7'!A1:F12" {
		t.Errorf("ref = %q", ref)
	}
	if len(fake.added) != 1 || fake.added[0] != "Trip 7" {
		t.Errorf("expected Trip 7 tab to be created, added = %v", fake.added)
	}
	if fake.cleared != 1 {
		t.Errorf("expected one clear, got %d", fake.cleared)
	}
	if fake.inputOption != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", fake.inputOption)
	}
	if !strings.Contains(fake.updatePath, "'Trip 7'!A1:F12") {
		t.Errorf("update path = %q", fake.updatePath)
	}
	if len(fake.written) != 12 || fake.written[0][0] != "Trip" {
		t.Errorf("unexpected rows written: %v", fake.written)
	}
}

func TestExportReport_ReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Trip 7"}}
	c := newTestClient(t, fake)

	if _, err := c.ExportReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("ExportReport() error = %v", err)
	}
	if len(fake.added) != 0 {
		t.Errorf("existing tab should be reused, added = %v", fake.added)
	}
}
