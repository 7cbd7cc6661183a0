package sheets_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	tripsheets "github.com/Veraticus/tripwallet/internal/sheets"
	"github.com/Veraticus/tripwallet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeValuesAPI emulates the spreadsheets.values endpoints for one tab.
type fakeValuesAPI struct {
	rows       [][]any
	calls      []string
	failGets   int
	failPuts   int
	failClears int
	inputOpt   string
	mu         sync.Mutex
}

// parseRange turns "Expenses!A3:H" into a 0-based first row and an
// exclusive last row, -1 meaning open-ended.
func parseRange(a1 string) (int, int, bool) {
	tab, cells, ok := strings.Cut(a1, "!")
	if !ok || tab != "Expenses" {
		return 0, 0, false
	}
	from, to, ok := strings.Cut(cells, ":")
	if !ok {
		return 0, 0, false
	}
	first, last := 0, -1
	if n, err := strconv.Atoi(strings.TrimPrefix(from, "A")); err == nil {
		first = n - 1
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(to, "H")); err == nil {
		last = n
	}
	return first, last, true
}

func (f *fakeValuesAPI) fail(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"rejected"}}`, code)
}

func (f *fakeValuesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, a1, _ := strings.Cut(r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
	a1 = strings.TrimSuffix(a1, ":clear")
	first, last, ok := parseRange(a1)
	if !ok {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		if f.failGets > 0 {
			f.failGets--
			f.fail(w, http.StatusServiceUnavailable)
			return
		}
		resp := map[string]any{"range": "Expenses!A1:H1000", "majorDimension": "ROWS"}
		if len(f.rows) > 0 {
			resp["values"] = f.rows
		}
		writeJSON(w, resp)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.calls = append(f.calls, "clear "+a1)
		if f.failClears > 0 {
			f.failClears--
			f.fail(w, http.StatusBadRequest)
			return
		}
		for i := first; i < len(f.rows) && (last < 0 || i < last); i++ {
			f.rows[i] = []any{}
		}
		f.trim()
		writeJSON(w, map[string]any{"clearedRange": a1})

	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update "+a1)
		if f.failPuts > 0 {
			f.failPuts--
			f.fail(w, http.StatusBadRequest)
			return
		}
		f.inputOpt = r.URL.Query().Get("valueInputOption")
		var body sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if last >= 0 && len(body.Values) > last-first {
			f.fail(w, http.StatusBadRequest)
			return
		}
		for i, row := range body.Values {
			for len(f.rows) <= first+i {
				f.rows = append(f.rows, []any{})
			}
			f.rows[first+i] = row
		}
		f.trim()
		writeJSON(w, map[string]any{"updatedRows": len(body.Values)})

	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

// trim drops trailing empty rows the way the API omits them.
func (f *fakeValuesAPI) trim() {
	for len(f.rows) > 0 && isEmptyRow(f.rows[len(f.rows)-1]) {
		f.rows = f.rows[:len(f.rows)-1]
	}
}

func isEmptyRow(row []any) bool {
	for _, cell := range row {
		if fmt.Sprint(cell) != "" {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestDocument(t *testing.T, api *fakeValuesAPI) *tripsheets.Document {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	service, err := sheets.NewService(ctx,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	doc, err := tripsheets.NewDocumentWithService(service, tripsheets.Config{
		SpreadsheetID: "sheet-1",
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, common.Discard())
	require.NoError(t, err)
	return doc
}

func TestSheetsStore_Contract(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T) ledger.Store {
		return ledger.NewWholeFileStore(newTestDocument(t, &fakeValuesAPI{}), common.Discard())
	})
}

func TestDocument_WritesRawRowsWithHeader(t *testing.T) {
	api := &fakeValuesAPI{}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testutil.Record(0)))

	assert.Equal(t, "RAW", api.inputOpt)
	require.Len(t, api.rows, 2)
	assert.Equal(t, "id", api.rows[0][0])
	assert.Equal(t, "rec-000", api.rows[1][0])
	assert.Equal(t, []string{"get", "update Expenses!A1:H2", "clear Expenses!A3:H"}, api.calls)
}

func TestDocument_ReadsLegacyTab(t *testing.T) {
	api := &fakeValuesAPI{rows: [][]any{
		{"날짜", "항목", "통화", "외화금액", "환율", "한국돈(원)"},
		{"2024-05-01", "택시", "🇪🇺 EUR", "12", "1,450.2", "17402"},
		// Sheets drops trailing empty cells.
		{"2024-05-02", "coffee", "USD", "3.5", "1300"},
	}}
	doc := newTestDocument(t, api)

	snap, err := doc.Read(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Exists)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "택시", snap.Records[0].Description)
	assert.Equal(t, int64(17402), snap.Records[0].LocalAmount)
	assert.Equal(t, int64(0), snap.Records[1].LocalAmount)
	assert.NotEmpty(t, snap.Records[0].ID)
}

func TestDocument_RetriesServerErrors(t *testing.T) {
	api := &fakeValuesAPI{failGets: 2}
	doc := newTestDocument(t, api)

	snap, err := doc.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Len(t, api.calls, 3)
}

func TestDocument_ReadFailureIsUnavailable(t *testing.T) {
	api := &fakeValuesAPI{failGets: 10}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())

	_, err := store.LoadAll(context.Background())
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
}

func TestDocument_ResetLeavesHeader(t *testing.T) {
	api := &fakeValuesAPI{}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testutil.Record(0)))
	require.NoError(t, store.Reset(ctx))

	require.Len(t, api.rows, 1)
	assert.Equal(t, "id", api.rows[0][0])

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	testutil.AssertRecordsEqual(t, []model.ExpenseRecord{}, records)
}

func TestDocument_FailedWriteKeepsLedger(t *testing.T) {
	api := &fakeValuesAPI{}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, testutil.Record(i)))
	}

	api.failPuts = 1
	err := store.Append(ctx, testutil.Record(3))
	require.ErrorIs(t, err, ledger.ErrStorageUnavailable)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	testutil.AssertRecordsEqual(t, []model.ExpenseRecord{
		testutil.Record(0), testutil.Record(1), testutil.Record(2),
	}, records)
}

func TestDocument_RemoveBlanksOldRowsWhenClearFails(t *testing.T) {
	api := &fakeValuesAPI{}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, testutil.Record(i)))
	}

	api.failClears = 1
	removed, err := store.Remove(ctx, testutil.Record(0).ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Record(0).ID, removed.ID)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	testutil.AssertRecordsEqual(t, []model.ExpenseRecord{testutil.Record(1), testutil.Record(2)}, records)
}

func TestDocument_ShrinkingWriteClearsTail(t *testing.T) {
	api := &fakeValuesAPI{}
	store := ledger.NewWholeFileStore(newTestDocument(t, api), common.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, testutil.Record(i)))
	}
	_, err := store.RemoveLast(ctx)
	require.NoError(t, err)

	assert.Len(t, api.rows, 3)
	assert.Equal(t, "clear Expenses!A4:H", api.calls[len(api.calls)-1])
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  tripsheets.Config
		wantErr error
	}{
		{
			name: "partial oauth credentials",
			config: tripsheets.Config{
				ClientID:      "test-client",
				RefreshToken:  "test-token",
				SpreadsheetID: "sheet-1",
			},
			wantErr: common.ErrMissingConfig,
			errMsg:  "no authentication method configured",
		},
		{
			name: "both auth methods",
			config: tripsheets.Config{
				ClientID:           "id",
				ClientSecret:       "secret",
				RefreshToken:       "token",
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet-1",
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "missing spreadsheet",
			config: tripsheets.Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: common.ErrMissingConfig,
			errMsg:  "spreadsheet id",
		},
		{
			name: "negative retry delay",
			config: tripsheets.Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet-1",
				RetryDelay:         -1 * time.Second,
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry delay cannot be negative",
		},
		{
			name: "service account",
			config: tripsheets.Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := tripsheets.DefaultConfig()
	assert.Equal(t, tripsheets.DefaultTab, cfg.Tab)
	assert.Equal(t, 3, cfg.RetryAttempts)
}
