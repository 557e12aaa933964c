// Package google mirrors transactions into a Google Sheets spreadsheet
// used as an off-site backup of the ledger.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"log/slog"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	ports "tally/internal/sheets"
)

// Each mirrored row carries the transaction ID in column A so deletes
// can find the row again later.
const ledgerColumns = "A:F"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var (
	_ ports.LedgerAppender   = (*Client)(nil)
	_ ports.LedgerRowDeleter = (*Client)(nil)
)

// New creates a Sheets client for the given spreadsheet and sheet name.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendTransaction writes the transaction as one row at the bottom of
// the ledger sheet: ID, date, title, amount, type, category.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	amount := float64(t.Amount.Cents) / 100.0
	row := []any{
		strconv.FormatInt(t.ID, 10),
		t.Date.Format("2006-01-02"),
		t.Title,
		amount,
		t.CSVType(),
		t.Category,
	}

	rng := fmt.Sprintf("%s!%s", c.sheetName, ledgerColumns)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// DeleteTransactionRow finds the row carrying the given transaction ID in
// column A and removes it. A missing row is treated as already deleted.
func (c *Client) DeleteTransactionRow(ctx context.Context, transactionID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rowIndex, err := c.findRowByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if rowIndex < 0 {
		slog.DebugContext(ctx, "Ledger row not found, nothing to delete",
			"transaction_id", transactionID)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", rowIndex+1, c.sheetName, err)
	}
	return nil
}

// findRowByID scans column A for the transaction ID and returns its
// zero-based row index, or -1 when absent.
func (c *Client) findRowByID(ctx context.Context, transactionID int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return -1, fmt.Errorf("read %s: %w", rng, err)
	}

	want := strconv.FormatInt(transactionID, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i, nil
		}
	}
	return -1, nil
}

// sheetID resolves the numeric sheet ID for the configured sheet name.
func (c *Client) sheetID(ctx context.Context) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
