package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Expense is the JSON form of a ledger record.
type Expense struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Payer         string          `json:"payer,omitempty"`
	Description   string          `json:"description"`
	Currency      string          `json:"currency"`
	ForeignAmount decimal.Decimal `json:"foreign_amount"`
	Rate          decimal.Decimal `json:"rate"`
	LocalAmount   int64           `json:"local_amount"`
}

// ExpenseList is the response of GET /api/expenses.
type ExpenseList struct {
	ByPayer  map[string]int64 `json:"by_payer"`
	Expenses []Expense        `json:"expenses"`
	Total    int64            `json:"total"`
}

// RateResponse is the response of GET /api/rates/{code}.
type RateResponse struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
	Rate      decimal.Decimal `json:"rate"`
	Units     int64           `json:"units"`
}

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// ConvertResponse is the response of POST /api/convert.
type ConvertResponse struct {
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	LocalAmount int64           `json:"local_amount"`
}

// RecordRequest is the body of POST /api/expenses.
type RecordRequest struct {
	Date        string          `json:"date,omitempty"`
	Payer       string          `json:"payer,omitempty"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
}

func toExpense(r model.ExpenseRecord) Expense {
	return Expense{
		ID:            r.ID,
		Date:          r.DateString(),
		Payer:         r.Payer,
		Description:   r.Description,
		Currency:      string(r.Currency),
		ForeignAmount: r.ForeignAmount,
		Rate:          r.Rate,
		LocalAmount:   r.LocalAmount,
	}
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	code, err := currency.Parse(chi.URLParam(r, "code"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_currency", err.Error())
		return
	}

	quote, err := s.fetcher.Fetch(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}

	info, _ := currency.Lookup(code)
	writeJSON(w, http.StatusOK, RateResponse{
		Currency:  string(quote.Currency),
		Rate:      quote.Rate,
		Units:     info.QuoteUnits,
		Source:    quote.Source,
		FetchedAt: quote.FetchedAt,
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code, err := currency.Parse(req.Currency)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_currency", err.Error())
		return
	}

	conv, err := s.workflow.Calculate(r.Context(), req.Amount, code)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Currency:    string(code),
		Amount:      conv.Amount,
		Rate:        conv.Quote.Rate,
		LocalAmount: conv.Local,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	report, err := s.workflow.List(r.Context(), workflow.Filter{Payer: r.URL.Query().Get("payer")})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ExpenseList{
		Expenses: make([]Expense, 0, len(report.Records)),
		Total:    report.Total,
		ByPayer:  report.ByPayer,
	}
	for _, rec := range report.Records {
		resp.Expenses = append(resp.Expenses, toExpense(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code, err := currency.Parse(req.Currency)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_currency", err.Error())
		return
	}

	sub := workflow.Submission{
		Payer:       req.Payer,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    code,
	}
	if req.Date != "" {
		sub.Date, err = time.Parse(model.DateFormat, req.Date)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
			return
		}
	}

	rec, err := s.workflow.Record(r.Context(), sub)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpense(rec))
}

// handleUndoLast removes the newest expense this server recorded, falling
// back to the last stored row when it has recorded nothing.
func (s *Server) handleUndoLast(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workflow.Undo(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpense(rec))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workflow.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpense(rec))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Reset(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSONError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, ledger.ErrEmptyLedger):
		writeJSONError(w, http.StatusConflict, "empty_ledger", "The ledger has no expenses")
	case errors.Is(err, ledger.ErrRecordNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "Expense not found")
	case errors.Is(err, ledger.ErrConflict):
		writeJSONError(w, http.StatusConflict, "conflict", "The ledger changed concurrently, try again")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		s.logger.Error("ledger storage unavailable", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "storage_unavailable", "Ledger storage is unavailable, try again")
	case errors.Is(err, rates.ErrFetchFailed):
		s.logger.Warn("rate fetch failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "rate_unavailable", "Could not fetch the exchange rate")
	default:
		s.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body: "+strings.TrimPrefix(err.Error(), "json: "))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
