package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an insert or rename collides with an
	// existing record, such as a duplicate item name.
	ErrConflict = errors.New("record already exists")
)

// ValidationError reports bad or missing caller input. It is never retried
// automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports an adjustment or deduction that would drive
// an item's quantity below zero. The operation it aborted has no side effects.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: have %.2f, need %.2f",
		e.ItemName, e.Available, e.Requested)
}
