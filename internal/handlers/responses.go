package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/platform/httpx"
	"github.com/nilecart/api/internal/services"
)

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       int64  `json:"total"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type checkoutResponse struct {
	Order   orderPayload   `json:"order"`
	Payment paymentPayload `json:"payment"`
}

type orderPayload struct {
	ID           string               `json:"id"`
	OrderNumber  string               `json:"order_number"`
	Status       string               `json:"status"`
	Customer     orderCustomerPayload `json:"customer"`
	Lines        []orderLinePayload   `json:"lines"`
	Totals       orderTotalsPayload   `json:"totals"`
	DiscountCode string               `json:"discount_code,omitempty"`
	Address      addressPayload       `json:"address"`
	CityID       string               `json:"city_id,omitempty"`
	CityName     string               `json:"city_name,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	CancelReason string               `json:"cancel_reason,omitempty"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at,omitempty"`
	ConfirmedAt  string               `json:"confirmed_at,omitempty"`
	ShippedAt    string               `json:"shipped_at,omitempty"`
	DeliveredAt  string               `json:"delivered_at,omitempty"`
	CancelledAt  string               `json:"cancelled_at,omitempty"`
}

type orderCustomerPayload struct {
	UserID string               `json:"user_id,omitempty"`
	Email  string               `json:"email"`
	Guest  *guestContactPayload `json:"guest,omitempty"`
}

type guestContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type orderLinePayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Fee      int64 `json:"fee"`
	Total    int64 `json:"total"`
}

type addressPayload struct {
	Kind       string `json:"kind"`
	Freeform   string `json:"freeform,omitempty"`
	Street     string `json:"street,omitempty"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type paymentPayload struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	Method     string `json:"method"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	ProofRef   string `json:"proof_ref,omitempty"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type paymentListResponse struct {
	Items []paymentPayload `json:"items"`
}

type lowStockResponse struct {
	Items         []lowStockPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type lowStockPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.Number),
		Status:      string(order.Status),
		Total:       order.Totals.Total,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.Number),
		Status:      string(order.Status),
		Customer: orderCustomerPayload{
			UserID: strings.TrimSpace(order.Customer.UserID),
			Email:  strings.TrimSpace(order.Customer.Email),
		},
		Lines: make([]orderLinePayload, 0, len(order.Lines)),
		Totals: orderTotalsPayload{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Fee:      order.Totals.Fee,
			Total:    order.Totals.Total,
		},
		DiscountCode: strings.TrimSpace(order.DiscountCode),
		Address:      buildAddressPayload(order.Address),
		CityID:       strings.TrimSpace(order.CityID),
		CityName:     strings.TrimSpace(order.CityName),
		Notes:        strings.TrimSpace(order.Notes),
		CancelReason: strings.TrimSpace(order.CancelReason),
		CreatedAt:    formatTime(order.CreatedAt),
		UpdatedAt:    formatTime(order.UpdatedAt),
		ConfirmedAt:  formatTimePtr(order.ConfirmedAt),
		ShippedAt:    formatTimePtr(order.ShippedAt),
		DeliveredAt:  formatTimePtr(order.DeliveredAt),
		CancelledAt:  formatTimePtr(order.CancelledAt),
	}

	if order.Customer.Guest != nil {
		payload.Customer.Guest = &guestContactPayload{
			Name:  strings.TrimSpace(order.Customer.Guest.Name),
			Email: strings.TrimSpace(order.Customer.Guest.Email),
			Phone: strings.TrimSpace(order.Customer.Guest.Phone),
		}
	}

	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID: strings.TrimSpace(line.ProductID),
			Name:      strings.TrimSpace(line.Name),
			Color:     strings.TrimSpace(line.Color),
			Size:      strings.TrimSpace(line.Size),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total,
		})
	}
	if len(payload.Lines) == 0 {
		payload.Lines = []orderLinePayload{}
	}

	return payload
}

func buildAddressPayload(address domain.Address) addressPayload {
	return addressPayload{
		Kind:       string(address.Kind),
		Freeform:   strings.TrimSpace(address.Freeform),
		Street:     strings.TrimSpace(address.Street),
		Apartment:  strings.TrimSpace(address.Apartment),
		City:       strings.TrimSpace(address.City),
		PostalCode: strings.TrimSpace(address.PostalCode),
		Country:    strings.TrimSpace(address.Country),
	}
}

func buildPaymentPayload(payment domain.Payment) paymentPayload {
	return paymentPayload{
		ID:         strings.TrimSpace(payment.ID),
		OrderID:    strings.TrimSpace(payment.OrderID),
		Method:     string(payment.Method),
		Status:     string(payment.Status),
		Amount:     payment.Amount,
		ProofRef:   strings.TrimSpace(payment.ProofRef),
		ReviewedBy: strings.TrimSpace(payment.ReviewedBy),
		ReviewedAt: formatTimePtr(payment.ReviewedAt),
		CreatedAt:  formatTime(payment.CreatedAt),
		UpdatedAt:  formatTime(payment.UpdatedAt),
	}
}

func outOfStockDetails(err *services.OutOfStockError) map[string]any {
	return map[string]any{
		"product_id": err.ProductID,
		"product":    err.Name,
		"requested":  err.Requested,
		"available":  err.Available,
	}
}

// writeCheckoutError maps intake and pricing failures onto the JSON envelope.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var oos *services.OutOfStockError
	if errors.As(err, &oos) {
		httpx.WriteError(ctx, w, httpx.NewError("out_of_stock", oos.Error(), http.StatusConflict).
			WithDetails(outOfStockDetails(oos)))
		return
	}
	var rejected *services.DiscountRejectedError
	if errors.As(err, &rejected) {
		httpx.WriteError(ctx, w, httpx.NewError("discount_"+string(rejected.Reason), rejected.Error(), http.StatusBadRequest))
		return
	}

	switch {
	case errors.Is(err, services.ErrGuestNameRequired):
		httpx.WriteError(ctx, w, httpx.NewError("guest_name_required", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrGuestEmailInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("guest_email_required", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_address", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentMethodNotAvailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_available", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrGuestCheckoutDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("guest_checkout_disabled", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShippingMethodUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_shipping_method", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuoteInvalidInput), errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrServiceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to create order", http.StatusInternalServerError))
	}
}

// writeOrderError maps order read and lifecycle failures onto the JSON
// envelope. Access denials surface as not found so order IDs cannot be probed.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrServiceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

// writePaymentError maps payment side-channel failures onto the JSON envelope.
func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentProofNotSupported):
		httpx.WriteError(ctx, w, httpx.NewError("proof_not_supported", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("payment_invalid_state", err.Error(), http.StatusConflict))
	default:
		writeOrderError(ctx, w, err)
	}
}
