package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// LocalizedText stores a piece of copy in every supported storefront locale.
// English is the canonical fallback; additional locales are optional.
type LocalizedText struct {
	EN string
	AR string
}

// ProductVariant is a purchasable colour/size combination with its own stock pool.
type ProductVariant struct {
	Color      string
	Size       string
	Stock      int
	OutOfStock bool
}

// Product captures the catalog fields the order pipeline reads. Catalog
// management lives elsewhere; this view is intentionally narrow.
type Product struct {
	ID            string
	Slug          string
	Name          LocalizedText
	Price         int64
	DiscountPrice int64
	Stock         int
	Variants      []ProductVariant
	Active        bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveUnitPrice returns the price a buyer pays for one unit right now.
// A discount price participates only when set below the list price.
func (p Product) EffectiveUnitPrice() int64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.Price {
		return p.DiscountPrice
	}
	return p.Price
}

// HasVariants reports whether stock is tracked per colour/size combination.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// AvailableStock returns the sellable quantity: the flat stock counter, or the
// sum across variants not flagged out of stock.
func (p Product) AvailableStock() int {
	if !p.HasVariants() {
		return p.Stock
	}
	total := 0
	for _, v := range p.Variants {
		if v.OutOfStock {
			continue
		}
		total += v.Stock
	}
	return total
}

// VariantAvailableStock returns the sellable quantity of a single variant, or
// zero when no variant matches the colour/size pair.
func (p Product) VariantAvailableStock(color, size string) int {
	for _, v := range p.Variants {
		if v.Color == color && v.Size == size {
			if v.OutOfStock {
				return 0
			}
			return v.Stock
		}
	}
	return 0
}

// DiscountType enumerates supported discount code kinds.
type DiscountType string

const (
	// DiscountTypePercent deducts a percentage of the order subtotal.
	DiscountTypePercent DiscountType = "percent"
	// DiscountTypeFixed deducts a fixed amount from the order subtotal.
	DiscountTypeFixed DiscountType = "fixed"
)

// DiscountCode is a redeemable promotion entered at checkout. Codes are stored
// uppercase; lookups normalise input before matching.
type DiscountCode struct {
	ID             string
	Code           string
	Type           DiscountType
	Value          int64
	MinOrderAmount int64
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	UsageLimit     int
	UsedCount      int
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Exhausted reports whether the usage limit has been reached. A zero limit
// means unlimited redemptions.
func (d DiscountCode) Exhausted() bool {
	return d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit
}

// City is a deliverable destination with its flat delivery fee.
type City struct {
	ID        string
	Name      LocalizedText
	Fee       int64
	Enabled   bool
	UpdatedAt time.Time
}

// ShippingMethod is an admin-managed delivery option that overrides city fees.
type ShippingMethod struct {
	ID        string
	Name      LocalizedText
	Price     int64
	Enabled   bool
	UpdatedAt time.Time
}

// StoreSettings carries storefront-wide toggles read at checkout time.
type StoreSettings struct {
	EnabledPaymentMethods []PaymentMethod
	LowStockThreshold     int
	UpdatedAt             time.Time
}

// PaymentMethodEnabled reports whether the given method is currently accepted.
func (s StoreSettings) PaymentMethodEnabled(method PaymentMethod) bool {
	for _, m := range s.EnabledPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// AddressKind discriminates the shipping address union.
type AddressKind string

const (
	// AddressKindFreeform is a single operator-readable address string.
	AddressKindFreeform AddressKind = "freeform"
	// AddressKindStructured is a field-by-field postal address.
	AddressKindStructured AddressKind = "structured"
)

// Address is the shipping destination recorded on an order. Exactly one shape
// is populated, selected by Kind.
type Address struct {
	Kind       AddressKind
	Freeform   string
	Street     string
	Apartment  string
	City       string
	PostalCode string
	Country    string
}

// GuestContact identifies an unauthenticated buyer.
type GuestContact struct {
	Name  string
	Email string
	Phone string
}

// Customer is the order owner: either a verified user reference or a guest
// contact, never both.
type Customer struct {
	UserID string
	Email  string
	Guest  *GuestContact
}

// IsGuest reports whether the order was placed without an authenticated user.
func (c Customer) IsGuest() bool {
	return c.UserID == "" && c.Guest != nil
}

// OrderStatus models the order lifecycle state machine.
type OrderStatus string

const (
	// OrderStatusPending is the initial state after intake.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed means stock has been committed to the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped means the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is the terminal success state.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is the terminal abort state.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLine is a priced snapshot of one cart line, denormalised so later
// catalog edits never change historical orders.
type OrderLine struct {
	ProductID string
	Name      string
	Color     string
	Size      string
	Quantity  int
	UnitPrice int64
	Total     int64
}

// HasVariant reports whether the line targets a specific colour/size pool.
func (l OrderLine) HasVariant() bool {
	return l.Color != "" || l.Size != ""
}

// OrderTotals aggregates the monetary summary of an order.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Fee      int64
	Total    int64
}

// Order is the aggregate produced by intake and driven through the status
// state machine.
type Order struct {
	ID           string
	Number       string
	Customer     Customer
	Lines        []OrderLine
	Totals       OrderTotals
	DiscountCode string
	Address      Address
	CityID       string
	CityName     string
	Status       OrderStatus
	Notes        string
	CancelReason string
	ConfirmedAt  *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentMethod enumerates accepted settlement methods.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash collected on delivery.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodInstapay is a bank transfer proven by an uploaded receipt.
	PaymentMethodInstapay PaymentMethod = "instapay"
)

// PaymentStatus tracks settlement progress independently of order status.
type PaymentStatus string

const (
	// PaymentStatusUnpaid is the initial state for every payment.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPendingApproval means a transfer proof awaits operator review.
	PaymentStatusPendingApproval PaymentStatus = "pending_approval"
	// PaymentStatusPaid is the terminal settled state.
	PaymentStatusPaid PaymentStatus = "paid"
)

// Payment records how an order is settled. Created alongside its order in the
// same transaction; the store never talks to a payment gateway.
type Payment struct {
	ID         string
	OrderID    string
	Method     PaymentMethod
	Status     PaymentStatus
	Amount     int64
	ProofRef   string
	ReviewedBy string
	ReviewedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StockLevel is a point-in-time availability report used by low-stock listings.
type StockLevel struct {
	ProductID string
	Name      string
	Available int
	UpdatedAt time.Time
}
