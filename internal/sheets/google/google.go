package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"financas/internal/core"
	"financas/internal/log"
	ports "financas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab used when GOOGLE_SHEET_NAME is unset.
const DefaultSheetName = "Transacoes"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var (
	_ ports.TransactionWriter = (*Client)(nil)
	_ ports.TransactionLister = (*Client)(nil)
	_ ports.PeriodLister      = (*Client)(nil)
)

// Options configures a Client. Credentials come from OAuthTokenFile, or the
// environment (see clientOptionsFromEnv), unless ClientOptions carry them.
type Options struct {
	SpreadsheetID  string
	SheetName      string
	OAuthTokenFile string
	Logger         *log.Logger
	ClientOptions  []goption.ClientOption
}

// New creates a Sheets client for one spreadsheet tab.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDefault()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		var err error
		if clientOpts, err = clientOptionsFromEnv(ctx, logger, opts.OAuthTokenFile); err != nil {
			return nil, fmt.Errorf("sheets service: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheetName)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, logger: logger}, nil
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and GOOGLE_SHEET_NAME.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:     os.Getenv("GOOGLE_SHEET_NAME"),
	})
}

// clientOptionsFromEnv prefers a user OAuth token (tokenFile, else
// GOOGLE_OAUTH_TOKEN_FILE, written by financas-oauth-init) and falls back to
// a service account.
func clientOptionsFromEnv(ctx context.Context, logger *log.Logger, tokenFile string) ([]goption.ClientOption, error) {
	tokenFile = strings.TrimSpace(tokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(os.Getenv(EnvOAuthTokenFile))
	}
	if tokenFile != "" {
		ts, err := TokenSourceFromEnv(ctx, tokenFile)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Using OAuth user token", "path", tokenFile)
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	}

	creds, err := loadCredentials(ctx, logger)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// loadCredentials reads Service Account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func loadCredentials(ctx context.Context, logger *log.Logger) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials", "json_length", len(serviceAccountJSON))
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:G", c.sheetName)
}

// Append writes tx as a new row and returns the updated range.
func (c *Client) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := c.dataRange()
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Row appended", log.FieldRef, ref)
	return ref, nil
}

// ListTransactions reads the whole transaction tab.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.dataRange()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	txs, skipped := parseTransactionRows(c.sheetName, resp.Values)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed sheet rows", log.FieldCount, skipped, "range", rng)
	}
	return txs, nil
}

// ListPeriod reads the tab and keeps the rows referenced to year/month.
func (c *Client) ListPeriod(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	if err := (core.Period{Year: year, Month: month}).Validate(); err != nil {
		return nil, err
	}
	all, err := c.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return ports.FilterPeriod(all, year, month), nil
}
