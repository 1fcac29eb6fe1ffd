package repositories

import "fmt"

// InventoryErrorCode enumerates repository error causes for the order/stock
// consistency transactions.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates a line's quantity exceeds availability.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorProductNotFound indicates a line references a missing product document.
	InventoryErrorProductNotFound InventoryErrorCode = "inventory_product_not_found"
	// InventoryErrorVariantNotFound indicates the line's colour/size pool no longer exists.
	InventoryErrorVariantNotFound InventoryErrorCode = "inventory_variant_not_found"
	// InventoryErrorOrderNotFound indicates the order document is missing.
	InventoryErrorOrderNotFound InventoryErrorCode = "inventory_order_not_found"
	// InventoryErrorInvalidOrderState indicates the order status forbids the operation.
	InventoryErrorInvalidOrderState InventoryErrorCode = "inventory_invalid_state"
)

// InventoryError wraps stock-consistency failures with machine readable codes.
// For insufficient stock the product fields identify the first failing line.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	Message   string
	ProductID string
	Product   string
	Requested int
	Available int
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
