package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
)

// ErrInvalidSubmission is matched by every *ValidationError.
var ErrInvalidSubmission = errors.New("invalid submission")

// ValidationError reports a submission the user needs to fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidSubmission) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSubmission
}

func (w *Workflow) validate(sub Submission) error {
	if strings.TrimSpace(sub.Description) == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	if err := validateAmount(sub.Amount); err != nil {
		return err
	}
	if _, err := currency.Lookup(sub.Currency); err != nil {
		return &ValidationError{Field: "currency", Message: err.Error()}
	}

	payer := strings.TrimSpace(sub.Payer)
	if len(w.members) > 0 {
		if payer == "" {
			return &ValidationError{Field: "payer", Message: "payer is required"}
		}
		if !slices.Contains(w.members, payer) {
			return &ValidationError{
				Field:   "payer",
				Message: fmt.Sprintf("%q is not one of %s", payer, strings.Join(w.members, ", ")),
			}
		}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	return nil
}
