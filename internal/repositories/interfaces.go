package repositories

import (
	"context"
	"time"

	domain "github.com/nilecart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Inventory() InventoryRepository
	DiscountCodes() DiscountCodeRepository
	Cities() CityRepository
	ShippingMethods() ShippingMethodRepository
	Settings() SettingsRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository reads catalog snapshots for pricing and availability checks.
type ProductRepository interface {
	// FindActiveByIDs returns active, non-deleted products keyed by ID. IDs
	// without a matching sellable product are simply absent from the map.
	FindActiveByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[domain.StockLevel], error)
}

// LowStockQuery controls pagination and threshold filtering for low stock listings.
type LowStockQuery struct {
	Threshold int
	PageSize  int
	PageToken string
}

// OrderRepository persists order aggregates and provides query helpers for
// owners and admins. Create runs in a single transaction so the payment and
// any discount redemption commit atomically with the order document.
type OrderRepository interface {
	Create(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// UpdateStatus performs a transactional compare-and-set from one expected
	// status to the next. It never touches stock; confirmation and
	// cancellation of confirmed orders go through InventoryRepository.
	UpdateStatus(ctx context.Context, req UpdateOrderStatusRequest) (domain.Order, error)
}

// CreateOrderRequest bundles the documents written during order intake.
type CreateOrderRequest struct {
	Order   domain.Order
	Payment domain.Payment
	// DiscountCodeID, when set, triggers a conditional usedCount increment in
	// the same transaction; exhaustion aborts the whole creation.
	DiscountCodeID string
	Now            time.Time
}

// CreateOrderResult reports the persisted aggregate.
type CreateOrderResult struct {
	Order   domain.Order
	Payment domain.Payment
}

// UpdateOrderStatusRequest carries a guarded status transition.
type UpdateOrderStatusRequest struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
	Now     time.Time
}

// PaymentRepository stores payment records underneath an order document.
type PaymentRepository interface {
	List(ctx context.Context, orderID string) ([]domain.Payment, error)
	FindByID(ctx context.Context, orderID string, paymentID string) (domain.Payment, error)
	// AttachProof records an uploaded transfer receipt and moves the payment
	// to pending approval.
	AttachProof(ctx context.Context, req AttachProofRequest) (domain.Payment, error)
	// Review settles or rejects a proof under operator review.
	Review(ctx context.Context, req ReviewPaymentRequest) (domain.Payment, error)
}

// AttachProofRequest records an uploaded payment proof object.
type AttachProofRequest struct {
	OrderID   string
	PaymentID string
	ProofRef  string
	Now       time.Time
}

// ReviewPaymentRequest moves a payment out of pending approval.
type ReviewPaymentRequest struct {
	OrderID   string
	PaymentID string
	Approve   bool
	Reviewer  string
	Now       time.Time
}

// InventoryRepository owns the order/stock consistency transactions: stock
// moves and the matching order status flip always commit together or not at
// all.
type InventoryRepository interface {
	// ConfirmOrder decrements every line's stock pool and flips the order to
	// confirmed in one transaction. Any shortfall aborts the transaction with
	// an InventoryError carrying InventoryErrorInsufficientStock.
	ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (ConfirmOrderResult, error)
	// CancelOrder flips the order to cancelled; when the order was confirmed
	// it restores every line's stock in the same transaction.
	CancelOrder(ctx context.Context, req CancelOrderRequest) (CancelOrderResult, error)
}

// ConfirmOrderRequest finalises a pending order and commits its stock.
type ConfirmOrderRequest struct {
	OrderID string
	Now     time.Time
}

// ConfirmOrderResult reports the confirmed order and updated stock levels.
type ConfirmOrderResult struct {
	Order  domain.Order
	Stocks map[string]domain.StockLevel
}

// CancelOrderRequest aborts an order, restoring stock when it was confirmed.
type CancelOrderRequest struct {
	OrderID string
	Reason  string
	Now     time.Time
}

// CancelOrderResult reports the cancelled order and updated stock levels.
type CancelOrderResult struct {
	Order    domain.Order
	Restored bool
	Stocks   map[string]domain.StockLevel
}

// DiscountCodeRepository maintains discount code definitions. Usage counting
// happens inside the order creation transaction, not here.
type DiscountCodeRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
}

// CityRepository reads deliverable destinations and their fees.
type CityRepository interface {
	FindByID(ctx context.Context, cityID string) (domain.City, error)
}

// ShippingMethodRepository reads admin-managed delivery options.
type ShippingMethodRepository interface {
	FindByID(ctx context.Context, methodID string) (domain.ShippingMethod, error)
}

// SettingsRepository reads storefront-wide configuration documents.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.StoreSettings, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Email      string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
