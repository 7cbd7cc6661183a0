package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Document implements ledger.Document on a spreadsheet tab using the same
// row layout as the CSV ledger. Sheets has no write precondition, so
// concurrent writers from different processes are last-writer-wins.
type Document struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewDocument authenticates with the configured credentials.
func NewDocument(ctx context.Context, config Config, logger *slog.Logger) (*Document, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewDocumentWithService(service, config, logger)
}

// NewDocumentWithService uses an already constructed service.
func NewDocumentWithService(service *sheets.Service, config Config, logger *slog.Logger) (*Document, error) {
	if config.Tab == "" {
		config.Tab = DefaultTab
	}
	if err := config.validateTarget(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Document{
		service: service,
		logger:  logger,
		config:  config,
	}, nil
}

// NewStore returns a ledger.Store backed by the spreadsheet.
func NewStore(ctx context.Context, config Config, logger *slog.Logger) (*ledger.WholeFileStore, error) {
	doc, err := NewDocument(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	return ledger.NewWholeFileStore(doc, logger), nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// Name implements ledger.Document.
func (d *Document) Name() string {
	return fmt.Sprintf("sheets:%s/%s", d.config.SpreadsheetID, d.config.Tab)
}

func (d *Document) dataRange() string {
	return d.config.Tab + "!A:H"
}

// Read implements ledger.Document. An empty tab is a missing ledger.
func (d *Document) Read(ctx context.Context) (ledger.Snapshot, error) {
	var resp *sheets.ValueRange
	err := common.WithRetry(ctx, func() error {
		var getErr error
		resp, getErr = d.service.Spreadsheets.Values.Get(d.config.SpreadsheetID, d.dataRange()).Context(ctx).Do()
		return classify(getErr)
	}, d.retryOptions())
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, err)
	}

	if len(resp.Values) == 0 {
		return ledger.Snapshot{}, nil
	}

	records, _, err := ledger.DecodeRows(toRows(resp.Values))
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, err)
	}

	return ledger.Snapshot{Records: records, Rows: len(resp.Values), Exists: true}, nil
}

// Write implements ledger.Document. The new rows go out in one update that
// starts at A1 and is padded with blank rows over everything prev held, so
// a failed request leaves the previous ledger intact. Rows below the new
// ledger are cleared afterwards.
func (d *Document) Write(ctx context.Context, records []model.ExpenseRecord, prev ledger.Snapshot) error {
	rows := ledger.EncodeRows(records)
	height := len(rows)
	for len(rows) < max(prev.Rows, len(prev.Records)+1) {
		rows = append(rows, make([]string, len(ledger.Header)))
	}

	if err := d.update(ctx, rows); err != nil {
		return err
	}

	if err := d.clearFrom(ctx, height+1); err != nil {
		// The padded update already blanked every row prev held.
		d.logger.Warn("failed to clear rows below ledger", "row", height+1, "error", err)
	}

	d.logger.Debug("wrote ledger tab", "spreadsheet_id", d.config.SpreadsheetID, "rows", height)
	return nil
}

// Delete implements ledger.Document. The tab is left holding only the header.
func (d *Document) Delete(ctx context.Context) error {
	if err := d.clearFrom(ctx, 2); err != nil {
		return err
	}
	return d.update(ctx, ledger.EncodeRows(nil))
}

func (d *Document) update(ctx context.Context, rows [][]string) error {
	target := fmt.Sprintf("%s!A1:H%d", d.config.Tab, len(rows))
	values := toValues(rows)
	err := common.WithRetry(ctx, func() error {
		_, updateErr := d.service.Spreadsheets.Values.Update(d.config.SpreadsheetID, target, &sheets.ValueRange{
			Values: values,
		}).ValueInputOption("RAW").Context(ctx).Do()
		return classify(updateErr)
	}, d.retryOptions())
	if err != nil {
		return fmt.Errorf("%w: failed to write data: %w", ledger.ErrStorageUnavailable, err)
	}
	return nil
}

// clearFrom clears every row from the 1-based row onwards.
func (d *Document) clearFrom(ctx context.Context, row int) error {
	target := fmt.Sprintf("%s!A%d:H", d.config.Tab, row)
	err := common.WithRetry(ctx, func() error {
		_, clearErr := d.service.Spreadsheets.Values.Clear(d.config.SpreadsheetID, target, &sheets.ClearValuesRequest{}).Context(ctx).Do()
		return classify(clearErr)
	}, d.retryOptions())
	if err != nil {
		return fmt.Errorf("%w: failed to clear sheet: %w", ledger.ErrStorageUnavailable, err)
	}
	return nil
}

func (d *Document) retryOptions() common.RetryOptions {
	return common.RetryOptions{
		MaxAttempts:  d.config.RetryAttempts,
		InitialDelay: d.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// classify marks quota and server errors as retryable and everything else
// as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return &common.RetryableError{Err: err, Retryable: true}
		}
	}
	return common.Permanent(err)
}

func toRows(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows
}

func toValues(rows [][]string) [][]any {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}
