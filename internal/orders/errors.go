package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("invalid order request")
	ErrProductNotFound     = errors.New("product not found")
	ErrSizeNotFound        = errors.New("size not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNoEffectiveChange   = errors.New("order status unchanged")
	ErrTransactionConflict = errors.New("transaction conflict, retry")
)

// LineError pins a failure to one line of an order request.
type LineError struct {
	Index     int
	ProductID string
	Size      string
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("item %d (product %s, size %s): %v", e.Index, e.ProductID, e.Size, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
