// Package sheets appends weekly auto-fill rows to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finlink/internal/domain/reconcile"
)

// Exporter implements openfinance.Exporter.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewExporter creates a Sheets client from a service account file.
// An empty credentialsFile falls back to Application Default Credentials.
func NewExporter(ctx context.Context, spreadsheetID, sheetName, credentialsFile string) (*Exporter, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	opts := []option.ClientOption{option.WithScopes(gsheet.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// AppendAutoFill appends one row for the week starting weekOf.
func (e *Exporter) AppendAutoFill(ctx context.Context, weekOf time.Time, s reconcile.AutoFillSuggestion) error {
	vr := &gsheet.ValueRange{Values: [][]any{autoFillRow(weekOf, s)}}
	rng := fmt.Sprintf("%s!A:F", e.sheetName)

	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append auto-fill row: %w", err)
	}

	log.Printf("Sheets: appended auto-fill row for %s to %s", weekOf.Format("2006-01-02"), e.sheetName)
	return nil
}

// autoFillRow lays out: week, checking, vault, total debt, debt count, last sync.
// Unknown figures are written as empty cells.
func autoFillRow(weekOf time.Time, s reconcile.AutoFillSuggestion) []any {
	total := decimal.Zero
	for _, d := range s.Debts {
		total = total.Add(decimal.NewFromFloat(d.Balance))
	}

	lastSync := ""
	if s.LastSync != nil {
		lastSync = s.LastSync.UTC().Format(time.RFC3339)
	}

	return []any{
		weekOf.Format("2006-01-02"),
		amountCell(s.Checking),
		amountCell(s.Vault),
		total.StringFixed(2),
		len(s.Debts),
		lastSync,
	}
}

func amountCell(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}
