// Package workflow orchestrates conversions and ledger updates: validate the
// submission, fetch a rate, convert, persist, and report.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage is a step of a submission's lifecycle.
type Stage int

// Submission stages in order.
const (
	StageIdle Stage = iota
	StageValidating
	StageFetching
	StageConverting
	StagePersisting
	StageReporting
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageValidating:
		return "validating"
	case StageFetching:
		return "fetching"
	case StageConverting:
		return "converting"
	case StagePersisting:
		return "persisting"
	case StageReporting:
		return "reporting"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Observer is told when a submission enters a stage. err is only set on
// the StageReporting call of a failed submission.
type Observer func(stage Stage, err error)

// Submission is user input for one expense.
type Submission struct {
	Date        time.Time // zero means today
	Amount      decimal.Decimal
	Payer       string
	Description string
	Currency    currency.Code
}

// Conversion is the result of an ephemeral calculation.
type Conversion struct {
	Quote  model.RateQuote
	Amount decimal.Decimal
	Local  int64
}

// Filter narrows List results.
type Filter struct {
	Payer string // empty means everyone
}

// Report is a reloaded ledger with totals.
type Report struct {
	ByPayer map[string]int64
	Records []model.ExpenseRecord
	Total   int64
}

// Payers returns the payers present in the report, sorted.
func (r Report) Payers() []string {
	payers := make([]string, 0, len(r.ByPayer))
	for p := range r.ByPayer {
		payers = append(payers, p)
	}
	sort.Strings(payers)
	return payers
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMembers restricts payers to the given names.
func WithMembers(members []string) Option {
	return func(w *Workflow) {
		w.members = append([]string(nil), members...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// WithObserver registers a stage observer.
func WithObserver(observer Observer) Option {
	return func(w *Workflow) {
		w.observer = observer
	}
}

// WithRetry sets the retry policy for conflicting writes.
func WithRetry(opts common.RetryOptions) Option {
	return func(w *Workflow) {
		w.retry = opts
	}
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) {
		w.newID = newID
	}
}

// Workflow runs user actions against a fetcher and a ledger store. It is
// safe for concurrent use if the store is.
type Workflow struct {
	fetcher  rates.Fetcher
	store    ledger.Store
	logger   *slog.Logger
	now      func() time.Time
	observer Observer
	newID    func() string
	members  []string
	// appended holds IDs this workflow wrote, most recent last.
	appended []string
	retry    common.RetryOptions
	mu       sync.Mutex
}

// New creates a Workflow.
func New(fetcher rates.Fetcher, store ledger.Store, opts ...Option) *Workflow {
	w := &Workflow{
		fetcher: fetcher,
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		retry: common.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Members returns the configured member set.
func (w *Workflow) Members() []string {
	return append([]string(nil), w.members...)
}

// Calculate converts amount without touching the ledger.
func (w *Workflow) Calculate(ctx context.Context, amount decimal.Decimal, code currency.Code) (Conversion, error) {
	if err := validateAmount(amount); err != nil {
		return Conversion{}, err
	}
	if _, err := currency.Lookup(code); err != nil {
		return Conversion{}, &ValidationError{Field: "currency", Message: err.Error()}
	}

	quote, err := w.fetcher.Fetch(ctx, code)
	if err != nil {
		return Conversion{}, err
	}

	local, err := currency.Convert(amount, quote.Rate, code)
	if err != nil {
		return Conversion{}, err
	}

	return Conversion{Quote: quote, Amount: amount, Local: local}, nil
}

// Record validates sub, converts it at the current rate, and appends it.
// Invalid submissions return a *ValidationError and touch nothing.
func (w *Workflow) Record(ctx context.Context, sub Submission) (rec model.ExpenseRecord, err error) {
	defer func() {
		w.notify(StageReporting, err)
		if err != nil {
			w.logger.Warn("expense not recorded", "error", err)
		}
	}()

	w.notify(StageValidating, nil)
	if err = w.validate(sub); err != nil {
		return model.ExpenseRecord{}, err
	}

	w.notify(StageFetching, nil)
	quote, err := w.fetcher.Fetch(ctx, sub.Currency)
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	w.notify(StageConverting, nil)
	local, err := currency.Convert(sub.Amount, quote.Rate, sub.Currency)
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	rec = model.ExpenseRecord{
		ID:            w.newID(),
		Date:          w.dateOf(sub.Date),
		Payer:         strings.TrimSpace(sub.Payer),
		Description:   strings.TrimSpace(sub.Description),
		Currency:      sub.Currency,
		ForeignAmount: sub.Amount,
		Rate:          quote.Rate,
		LocalAmount:   local,
	}

	w.notify(StagePersisting, nil)
	if err = w.appendWithRetry(ctx, rec); err != nil {
		return model.ExpenseRecord{}, err
	}

	w.mu.Lock()
	w.appended = append(w.appended, rec.ID)
	w.mu.Unlock()

	w.logger.Info("expense recorded",
		"id", rec.ID,
		"currency", rec.Currency,
		"amount", rec.ForeignAmount.String(),
		"local", rec.LocalAmount)
	return rec, nil
}

// appendWithRetry retries only on ErrConflict. Each attempt goes back
// through the store, which re-reads the ledger before writing.
func (w *Workflow) appendWithRetry(ctx context.Context, rec model.ExpenseRecord) error {
	return common.WithRetry(ctx, func() error {
		err := w.store.Append(ctx, rec)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ledger.ErrConflict):
			w.logger.Debug("ledger changed during append, retrying", "id", rec.ID)
			return &common.RetryableError{Err: err, Retryable: true}
		default:
			return common.Permanent(err)
		}
	}, w.retry)
}

// Undo removes the most recent record this workflow appended. When it has
// appended nothing it falls back to the last record in storage order.
func (w *Workflow) Undo(ctx context.Context) (model.ExpenseRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.appended) == 0 {
		return w.undoLast(ctx)
	}

	id := w.appended[len(w.appended)-1]
	removed, err := w.store.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) || errors.Is(err, ledger.ErrEmptyLedger) {
			// Someone else already removed it.
			w.appended = w.appended[:len(w.appended)-1]
		}
		return model.ExpenseRecord{}, err
	}

	w.appended = w.appended[:len(w.appended)-1]
	w.logger.Info("undid expense", "id", removed.ID)
	return removed, nil
}

func (w *Workflow) undoLast(ctx context.Context) (model.ExpenseRecord, error) {
	removed, err := w.store.RemoveLast(ctx)
	if err != nil {
		return model.ExpenseRecord{}, err
	}
	w.forget(removed.ID)
	w.logger.Info("removed last expense", "id", removed.ID)
	return removed, nil
}

// Remove deletes a specific record.
func (w *Workflow) Remove(ctx context.Context, id string) (model.ExpenseRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed, err := w.store.Remove(ctx, id)
	if err != nil {
		return model.ExpenseRecord{}, err
	}
	w.forget(id)
	w.logger.Info("removed expense", "id", id)
	return removed, nil
}

// forget drops id from the session stack. Callers hold w.mu.
func (w *Workflow) forget(id string) {
	for i := len(w.appended) - 1; i >= 0; i-- {
		if w.appended[i] == id {
			w.appended = append(w.appended[:i], w.appended[i+1:]...)
			return
		}
	}
}

// List reloads the ledger, applies filter, and totals local amounts.
func (w *Workflow) List(ctx context.Context, filter Filter) (Report, error) {
	records, err := w.store.LoadAll(ctx)
	if err != nil {
		return Report{}, err
	}

	payer := strings.TrimSpace(filter.Payer)
	report := Report{
		Records: make([]model.ExpenseRecord, 0, len(records)),
		ByPayer: make(map[string]int64),
	}
	for _, r := range records {
		if payer != "" && r.Payer != payer {
			continue
		}
		report.Records = append(report.Records, r)
		report.Total += r.LocalAmount
		report.ByPayer[r.Payer] += r.LocalAmount
	}
	return report, nil
}

// Reset clears the ledger.
func (w *Workflow) Reset(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.Reset(ctx); err != nil {
		return err
	}
	w.appended = nil
	return nil
}

func (w *Workflow) notify(stage Stage, err error) {
	if w.observer != nil {
		w.observer(stage, err)
	}
}

// dateOf keeps the calendar date of t, defaulting to today.
func (w *Workflow) dateOf(t time.Time) time.Time {
	if t.IsZero() {
		t = w.now()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
