package domain

import (
	"errors"
	"fmt"
)

var (
	ErrVariantRequired  = errors.New("variant id required")
	ErrLocationRequired = errors.New("location id required")
	ErrOrderIDRequired  = errors.New("order id required")
	ErrLinesRequired    = errors.New("order lines required")
	ErrTooManyLines     = errors.New("too many order lines")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrDuplicateLine    = errors.New("duplicate variant in order lines")
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrUnknownLocation  = errors.New("unknown location")

	ErrInventoryNotFound  = errors.New("inventory record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderLineExists    = errors.New("order line already exists")
	ErrTransactionAborted = errors.New("transaction aborted")
)

var validationErrors = []error{
	ErrVariantRequired,
	ErrLocationRequired,
	ErrOrderIDRequired,
	ErrLinesRequired,
	ErrTooManyLines,
	ErrInvalidQuantity,
	ErrInvalidPrice,
	ErrDuplicateLine,
	ErrUnknownVariant,
	ErrUnknownLocation,
}

// IsValidation reports whether err is a request-shape error that never reached the store.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a precondition failure the caller may resolve
// by re-reading inventory and retrying.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrOrderAlreadyExists) ||
		errors.Is(err, ErrOrderLineExists) ||
		errors.Is(err, ErrTransactionAborted)
}

// TxAbortedError is returned by AtomicTransaction when one op's guard fails.
// No op of the transaction has been applied.
type TxAbortedError struct {
	Op   int
	Kind TxOpKind
	Key  InventoryKey
	Err  error
}

func (e *TxAbortedError) Error() string {
	if e.Kind == TxUpdateInventory {
		return fmt.Sprintf("transaction aborted at op %d (%s %s): %v", e.Op, e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("transaction aborted at op %d (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TxAbortedError) Unwrap() []error {
	return []error{ErrTransactionAborted, e.Err}
}
