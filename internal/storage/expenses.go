package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
)

var _ ledger.Store = (*SQLiteStorage)(nil)

const selectColumns = `id, date, payer, description, currency, foreign_amount, rate, local_amount`

type rowScanner interface {
	Scan(dest ...any) error
}

// LoadAll returns every expense in append order.
func (s *SQLiteStorage) LoadAll(ctx context.Context) ([]model.ExpenseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM expenses ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query expenses: %w", ledger.ErrStorageUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.ExpenseRecord{}
	for rows.Next() {
		rec, scanErr := scanExpense(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating expenses: %w", ledger.ErrStorageUnavailable, err)
	}

	return records, nil
}

// Append inserts record after all existing rows.
func (s *SQLiteStorage) Append(ctx context.Context, record model.ExpenseRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(&record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, date, payer, description, currency, foreign_amount, rate, local_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.DateString(),
		record.Payer,
		record.Description,
		string(record.Currency),
		record.ForeignAmount.String(),
		record.Rate.String(),
		record.LocalAmount,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert expense %s: %w", ledger.ErrStorageUnavailable, record.ID, err)
	}
	return nil
}

// RemoveLast deletes the most recently appended row.
func (s *SQLiteStorage) RemoveLast(ctx context.Context) (model.ExpenseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return model.ExpenseRecord{}, err
	}
	return s.removeWhere(ctx, `seq = (SELECT MAX(seq) FROM expenses)`, nil, ledger.ErrEmptyLedger)
}

// Remove deletes the row with the given ID.
func (s *SQLiteStorage) Remove(ctx context.Context, id string) (model.ExpenseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return model.ExpenseRecord{}, err
	}
	if err := validateString(id, "id"); err != nil {
		return model.ExpenseRecord{}, err
	}
	return s.removeWhere(ctx, `id = ?`, []any{id}, ledger.ErrRecordNotFound)
}

// Reset deletes every row. The table and schema version are kept.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("%w: failed to reset expenses: %w", ledger.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStorage) removeWhere(ctx context.Context, where string, args []any, notFound error) (model.ExpenseRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("%w: failed to begin transaction: %w", ledger.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&count); err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("%w: failed to count expenses: %w", ledger.ErrStorageUnavailable, err)
	}
	if count == 0 {
		return model.ExpenseRecord{}, ledger.ErrEmptyLedger
	}

	rec, err := scanExpense(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM expenses WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExpenseRecord{}, notFound
	}
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, rec.ID); err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("%w: failed to delete expense %s: %w", ledger.ErrStorageUnavailable, rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("%w: failed to commit: %w", ledger.ErrStorageUnavailable, err)
	}
	return rec, nil
}

func scanExpense(row rowScanner) (model.ExpenseRecord, error) {
	var (
		rec                          model.ExpenseRecord
		date, code, foreign, rateStr string
	)
	err := row.Scan(&rec.ID, &date, &rec.Payer, &rec.Description, &code, &foreign, &rateStr, &rec.LocalAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("%w: failed to scan expense: %w", ledger.ErrStorageUnavailable, err)
	}

	if rec.Date, err = time.Parse(model.DateFormat, date); err != nil {
		return rec, fmt.Errorf("%w: expense %s date %q: %w", ledger.ErrCorruptLedger, rec.ID, date, err)
	}
	if rec.Currency, err = currency.Parse(code); err != nil {
		return rec, fmt.Errorf("%w: expense %s: %w", ledger.ErrCorruptLedger, rec.ID, err)
	}
	if rec.ForeignAmount, err = decimal.NewFromString(foreign); err != nil {
		return rec, fmt.Errorf("%w: expense %s amount %q: %w", ledger.ErrCorruptLedger, rec.ID, foreign, err)
	}
	if rec.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return rec, fmt.Errorf("%w: expense %s rate %q: %w", ledger.ErrCorruptLedger, rec.ID, rateStr, err)
	}
	return rec, nil
}
