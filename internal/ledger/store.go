// Package ledger persists the expense ledger. Every backend exposes the same
// Store contract: load everything, append one record, remove the last record
// or a record by ID, and reset.
package ledger

import (
	"context"
	"errors"

	"github.com/Veraticus/tripwallet/internal/model"
)

// Ledger errors.
var (
	// ErrStorageUnavailable wraps any failure to read or write the backend.
	// It is never used for a ledger that simply does not exist yet.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	// ErrEmptyLedger is returned when removing from a ledger with no records.
	ErrEmptyLedger = errors.New("ledger is empty")
	// ErrRecordNotFound is returned when removing an ID that is not stored.
	ErrRecordNotFound = errors.New("record not found")
	// ErrConflict is returned when the backend rejected a write because the
	// ledger changed since it was read.
	ErrConflict = errors.New("ledger changed concurrently")
	// ErrCorruptLedger is returned when stored data cannot be decoded.
	ErrCorruptLedger = errors.New("ledger data is corrupt")
)

// Store is the contract every ledger backend implements.
type Store interface {
	// LoadAll returns records in append order. A missing ledger yields an
	// empty slice and a nil error.
	LoadAll(ctx context.Context) ([]model.ExpenseRecord, error)
	Append(ctx context.Context, record model.ExpenseRecord) error
	// RemoveLast drops the final record in storage order and returns it.
	RemoveLast(ctx context.Context) (model.ExpenseRecord, error)
	// Remove drops the record with the given ID and returns it.
	Remove(ctx context.Context, id string) (model.ExpenseRecord, error)
	Reset(ctx context.Context) error
}

func dropLast(records []model.ExpenseRecord) ([]model.ExpenseRecord, model.ExpenseRecord, error) {
	if len(records) == 0 {
		return records, model.ExpenseRecord{}, ErrEmptyLedger
	}
	last := records[len(records)-1]
	return records[:len(records)-1], last, nil
}

func dropByID(records []model.ExpenseRecord, id string) ([]model.ExpenseRecord, model.ExpenseRecord, error) {
	for i, r := range records {
		if r.ID != id {
			continue
		}
		rest := make([]model.ExpenseRecord, 0, len(records)-1)
		rest = append(rest, records[:i]...)
		rest = append(rest, records[i+1:]...)
		return rest, r, nil
	}
	if len(records) == 0 {
		return records, model.ExpenseRecord{}, ErrEmptyLedger
	}
	return records, model.ExpenseRecord{}, ErrRecordNotFound
}
