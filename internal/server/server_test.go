package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/certs"
	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/Veraticus/tripwallet/internal/testutil"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv   *httptest.Server
	store ledger.Store
}

func newTestEnv(t *testing.T, store ledger.Store, fetcher rates.Fetcher) *testEnv {
	t.Helper()
	if store == nil {
		store = ledger.NewSerialized(ledger.NewFileStore(filepath.Join(t.TempDir(), "expenses.csv"), common.Discard()))
	}
	if fetcher == nil {
		fetcher = rates.NewStaticFetcher(map[currency.Code]decimal.Decimal{
			currency.USD: decimal.NewFromInt(1300),
			currency.JPY: decimal.NewFromInt(900),
		})
	}

	ids := 0
	wf := workflow.New(fetcher, store,
		workflow.WithLogger(common.Discard()),
		workflow.WithMembers([]string{"minji", "jun"}),
		workflow.WithClock(func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }),
		workflow.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("exp-%d", ids)
		}))

	srv := httptest.NewServer(New(wf, fetcher, common.Discard()).Routes())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRate(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodGet, "/api/rates/jpy", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rate := decode[RateResponse](t, resp)
	assert.Equal(t, "JPY", rate.Currency)
	assert.Equal(t, int64(100), rate.Units)
	assert.True(t, decimal.NewFromInt(900).Equal(rate.Rate))

	resp = env.do(t, http.MethodGet, "/api/rates/gbp", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_currency", decode[ErrorResponse](t, resp).Error)

	// Supported but not configured in the static table.
	resp = env.do(t, http.MethodGet, "/api/rates/eur", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "rate_unavailable", decode[ErrorResponse](t, resp).Error)
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPost, "/api/convert", `{"amount": 10, "currency": "usd"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := decode[ConvertResponse](t, resp)
	assert.Equal(t, int64(13000), conv.LocalAmount)

	resp = env.do(t, http.MethodPost, "/api/convert", `{"amount": 0, "currency": "usd"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, resp).Error)

	resp = env.do(t, http.MethodPost, "/api/convert", `{"amount": "ten"`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, resp).Error)
}

func TestExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPost, "/api/expenses",
		`{"description": "coffee", "amount": "10", "currency": "USD", "payer": "minji"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[Expense](t, resp)
	assert.Equal(t, "exp-1", created.ID)
	assert.Equal(t, int64(13000), created.LocalAmount)
	assert.Equal(t, "2025-03-14", created.Date)

	resp = env.do(t, http.MethodPost, "/api/expenses",
		`{"description": "ramen", "amount": 1000, "currency": "JPY", "payer": "jun", "date": "2025-03-10"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(9000), decode[Expense](t, resp).LocalAmount)

	resp = env.do(t, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[ExpenseList](t, resp)
	assert.Len(t, list.Expenses, 2)
	assert.Equal(t, int64(22000), list.Total)
	assert.Equal(t, map[string]int64{"minji": 13000, "jun": 9000}, list.ByPayer)

	resp = env.do(t, http.MethodGet, "/api/expenses?payer=jun", "")
	list = decode[ExpenseList](t, resp)
	require.Len(t, list.Expenses, 1)
	assert.Equal(t, "ramen", list.Expenses[0].Description)

	resp = env.do(t, http.MethodDelete, "/api/expenses/exp-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "coffee", decode[Expense](t, resp).Description)

	resp = env.do(t, http.MethodDelete, "/api/expenses/exp-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/expenses/last", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "exp-2", decode[Expense](t, resp).ID)

	resp = env.do(t, http.MethodDelete, "/api/expenses/last", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "empty_ledger", decode[ErrorResponse](t, resp).Error)
}

func TestUndoLastSkipsOtherWriters(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	resp := env.do(t, http.MethodPost, "/api/expenses",
		`{"description": "coffee", "amount": "10", "currency": "USD", "payer": "minji"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Another writer appends after this server.
	require.NoError(t, env.store.Append(ctx, testutil.Record(0)))

	resp = env.do(t, http.MethodDelete, "/api/expenses/last", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "exp-1", decode[Expense](t, resp).ID)

	records, err := env.store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, testutil.Record(0).ID, records[0].ID)

	// Nothing of ours is left, so undo falls back to storage order.
	resp = env.do(t, http.MethodDelete, "/api/expenses/last", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testutil.Record(0).ID, decode[Expense](t, resp).ID)
}

func TestRecordValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty description", `{"description": "", "amount": 5, "currency": "USD", "payer": "minji"}`, "validation_error"},
		{"unknown payer", `{"description": "x", "amount": 5, "currency": "USD", "payer": "bob"}`, "validation_error"},
		{"bad date", `{"description": "x", "amount": 5, "currency": "USD", "payer": "minji", "date": "March"}`, "validation_error"},
		{"bad currency", `{"description": "x", "amount": 5, "currency": "GBP", "payer": "minji"}`, "invalid_currency"},
		{"unknown field", `{"description": "x", "amount": 5, "currency": "USD", "who": "minji"}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Error)
		})
	}

	records, err := env.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPost, "/api/expenses", `{"description": "coffee", "amount": 1, "currency": "USD", "payer": "jun"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/expenses", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/expenses", "")
	list := decode[ExpenseList](t, resp)
	assert.Empty(t, list.Expenses)
	assert.Zero(t, list.Total)
}

func TestStorageUnavailable(t *testing.T) {
	// A directory in place of the ledger file fails every read.
	env := newTestEnv(t, ledger.NewFileStore(t.TempDir(), common.Discard()), nil)

	resp := env.do(t, http.MethodGet, "/api/expenses", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "storage_unavailable", decode[ErrorResponse](t, resp).Error)
}

func TestFetchFailureIsBadGateway(t *testing.T) {
	failing := rates.FetcherFunc(func(_ context.Context, _ currency.Code) (model.RateQuote, error) {
		return model.RateQuote{}, fmt.Errorf("%w: timeout", rates.ErrFetchFailed)
	})
	env := newTestEnv(t, nil, failing)

	resp := env.do(t, http.MethodPost, "/api/expenses", `{"description": "coffee", "amount": 1, "currency": "USD", "payer": "jun"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := New(workflow.New(rates.NewStaticFetcher(nil), ledger.NewFileStore(filepath.Join(t.TempDir(), "e.csv"), common.Discard())), nil, common.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRoutes_OverTLS(t *testing.T) {
	tlsConfig, err := certs.NewStore(t.TempDir()).TLSConfig()
	require.NoError(t, err)

	srv := New(workflow.New(rates.NewStaticFetcher(nil), ledger.NewFileStore(filepath.Join(t.TempDir(), "e.csv"), common.Discard())), nil, common.Discard())
	ts := httptest.NewUnstartedServer(srv.Routes())
	ts.TLS = tlsConfig
	ts.StartTLS()
	t.Cleanup(ts.Close)

	leaf, err := x509.ParseCertificate(tlsConfig.Certificates[0].Certificate[0])
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}}

	resp, err := client.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
