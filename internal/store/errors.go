package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrQuantityOutOfRange is returned when a stock quantity does not fit the
// integer column.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// InsufficientStockError is returned when a dispatch would take a pair's
// quantity below zero. The inventory row is left untouched.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient quantity: have %d, need %d", e.Available, e.Requested)
}

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

// mapWriteError converts driver errors into store sentinels.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case numericOutOfRange:
		return fmt.Errorf("%w: %s", ErrQuantityOutOfRange, pqErr.Message)
	}
	return err
}
