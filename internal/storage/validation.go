// Package storage provides the SQLite ledger backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tripwallet/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrInvalidRecord = errors.New("invalid expense record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecord checks the fields every stored row needs.
func validateRecord(r *model.ExpenseRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidRecord)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidRecord)
	}
	if r.Currency == "" {
		return fmt.Errorf("%w: currency cannot be empty", ErrInvalidRecord)
	}
	if r.LocalAmount < 0 {
		return fmt.Errorf("%w: local amount cannot be negative", ErrInvalidRecord)
	}
	return nil
}
