package services

import (
	"errors"
	"fmt"

	"github.com/nilecart/api/internal/repositories"
)

var (
	// ErrQuoteInvalidInput signals the caller provided malformed quote data.
	ErrQuoteInvalidInput = errors.New("quote: invalid input")
	// ErrProductUnavailable indicates a requested product is missing, inactive, or deleted.
	ErrProductUnavailable = errors.New("quote: product unavailable")
	// ErrInvalidQuantity indicates a line quantity below one.
	ErrInvalidQuantity = errors.New("quote: invalid quantity")
	// ErrOutOfStock indicates requested quantity exceeds current availability.
	ErrOutOfStock = errors.New("quote: out of stock")
	// ErrShippingMethodUnavailable indicates the referenced shipping method is missing or disabled.
	ErrShippingMethodUnavailable = errors.New("quote: shipping method unavailable")
	// ErrDiscountRejected indicates the discount code cannot be applied.
	ErrDiscountRejected = errors.New("quote: discount rejected")

	// ErrCheckoutInvalidInput signals malformed intake data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrGuestNameRequired indicates a guest order without a contact name.
	ErrGuestNameRequired = errors.New("checkout: guest name is required")
	// ErrGuestEmailInvalid indicates a guest order without a usable email address.
	ErrGuestEmailInvalid = errors.New("checkout: guest email is invalid")
	// ErrAddressInvalid indicates the shipping address union is incomplete.
	ErrAddressInvalid = errors.New("checkout: shipping address is invalid")
	// ErrPaymentMethodNotAvailable indicates the chosen method is unknown or disabled storewide.
	ErrPaymentMethodNotAvailable = errors.New("checkout: payment method not available")
	// ErrGuestCheckoutDisabled indicates guest intake is switched off storewide.
	ErrGuestCheckoutDisabled = errors.New("checkout: guest checkout is disabled")

	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderAccessDenied indicates the caller does not own the order.
	ErrOrderAccessDenied = errors.New("order: access denied")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent modification or duplicates.
	ErrOrderConflict = errors.New("order: conflict")

	// ErrPaymentNotFound indicates the payment could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentInvalidState indicates the payment status forbids the operation.
	ErrPaymentInvalidState = errors.New("payment: invalid state")
	// ErrPaymentProofNotSupported indicates proofs only apply to bank-transfer payments.
	ErrPaymentProofNotSupported = errors.New("payment: proof not supported for method")

	// ErrServiceUnavailable indicates the backing store could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// mapUnavailable folds backend outage errors into ErrServiceUnavailable so
// handlers can answer with a retryable status instead of a generic failure.
// Any other error passes through untouched.
func mapUnavailable(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return err
}

// OutOfStockError reports the first line whose requested quantity exceeds
// availability. Unwraps to ErrOutOfStock so callers can branch with errors.Is
// and extract details with errors.As.
type OutOfStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("quote: out of stock: %s requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// DiscountRejectReason distinguishes why a discount code failed to apply.
type DiscountRejectReason string

const (
	// DiscountRejectInvalid covers unknown, disabled, and exhausted codes.
	DiscountRejectInvalid DiscountRejectReason = "invalid"
	// DiscountRejectNotYetValid indicates the validity window has not opened.
	DiscountRejectNotYetValid DiscountRejectReason = "not_yet_valid"
	// DiscountRejectExpired indicates the validity window has closed.
	DiscountRejectExpired DiscountRejectReason = "expired"
	// DiscountRejectMinNotMet indicates the subtotal is below the code's minimum.
	DiscountRejectMinNotMet DiscountRejectReason = "min_not_met"
)

// DiscountRejectedError carries the rejection reason for a discount code.
// Unwraps to ErrDiscountRejected.
type DiscountRejectedError struct {
	Code   string
	Reason DiscountRejectReason
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("quote: discount %s rejected: %s", e.Code, e.Reason)
}

func (e *DiscountRejectedError) Unwrap() error {
	return ErrDiscountRejected
}
