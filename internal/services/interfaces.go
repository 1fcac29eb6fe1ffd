package services

import (
	"context"
	"time"

	"golang.org/x/text/language"

	domain "github.com/nilecart/api/internal/domain"
)

// QuoteLine is a single requested cart line prior to pricing.
type QuoteLine struct {
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// QuoteCommand asks for a server-side priced quote of a cart. Client-supplied
// prices or fees never enter the computation.
type QuoteCommand struct {
	Lines            []QuoteLine
	DiscountCode     string
	ShippingMethodID string
	CityID           string
	Locale           language.Tag
}

// Quote is the authoritative pricing result for a cart.
type Quote struct {
	Lines  []domain.OrderLine
	Totals domain.OrderTotals
	// DiscountCodeID is the normalised code identifier when a discount
	// applied, empty otherwise.
	DiscountCodeID string
	CityName       string
}

// QuoteService prices a cart from current catalog data. It performs no writes.
type QuoteService interface {
	Quote(ctx context.Context, cmd QuoteCommand) (Quote, error)
}

// GuestContactInput identifies an unauthenticated buyer at checkout.
type GuestContactInput struct {
	Name  string
	Email string
	Phone string
}

// AddressInput is the boundary representation of the shipping address union.
type AddressInput struct {
	Kind       domain.AddressKind
	Freeform   string
	Street     string
	Apartment  string
	City       string
	PostalCode string
	Country    string
}

// CreateOrderCommand carries everything needed to place an order.
type CreateOrderCommand struct {
	UserID           string
	UserEmail        string
	Guest            *GuestContactInput
	Lines            []QuoteLine
	DiscountCode     string
	PaymentMethod    domain.PaymentMethod
	ShippingMethodID string
	CityID           string
	Address          AddressInput
	Notes            string
	Locale           language.Tag
}

// CheckoutResult reports the created aggregate.
type CheckoutResult struct {
	Order   domain.Order
	Payment domain.Payment
}

// CheckoutService validates intake and creates the order/payment pair.
type CheckoutService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CheckoutResult, error)
}

// OrderAccess scopes reads and cancellations to the caller's identity. Admin
// bypasses ownership checks; otherwise UserID or Email must match the order.
type OrderAccess struct {
	UserID string
	Email  string
	Admin  bool
}

// ListOrdersQuery filters order listings.
type ListOrdersQuery struct {
	Access     OrderAccess
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// TransitionOrderCommand drives the admin status state machine.
type TransitionOrderCommand struct {
	OrderID      string
	TargetStatus domain.OrderStatus
	Reason       string
	ActorID      string
}

// CancelOrderCommand aborts an order on behalf of its owner or an admin.
type CancelOrderCommand struct {
	OrderID string
	Access  OrderAccess
	Reason  string
}

// OrderService exposes order reads and the status state machine.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string, access OrderAccess) (domain.Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[domain.Order], error)
	TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (domain.Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[domain.StockLevel], error)
}

// LowStockQuery pages products running low on sellable stock.
type LowStockQuery struct {
	Threshold int
	PageSize  int
	PageToken string
}

// ProofUploadCommand requests a signed upload slot for a transfer receipt.
type ProofUploadCommand struct {
	OrderID     string
	PaymentID   string
	Access      OrderAccess
	ContentType string
}

// ProofUpload carries the signed URL the client PUTs the receipt to.
type ProofUpload struct {
	UploadURL string
	ProofRef  string
	ExpiresAt time.Time
}

// AttachProofCommand records an uploaded receipt against a payment.
type AttachProofCommand struct {
	OrderID   string
	PaymentID string
	Access    OrderAccess
	ProofRef  string
}

// ReviewPaymentCommand settles or rejects a proof under operator review.
type ReviewPaymentCommand struct {
	OrderID   string
	PaymentID string
	Approve   bool
	ActorID   string
}

// PaymentService owns the Instapay proof side-channel and payment reads.
type PaymentService interface {
	ListPayments(ctx context.Context, orderID string, access OrderAccess) ([]domain.Payment, error)
	CreateProofUpload(ctx context.Context, cmd ProofUploadCommand) (ProofUpload, error)
	AttachProof(ctx context.Context, cmd AttachProofCommand) (domain.Payment, error)
	Review(ctx context.Context, cmd ReviewPaymentCommand) (domain.Payment, error)
}

// SystemService surfaces operational reports for health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}
