package firestore

import (
	"strings"
	"time"

	domain "github.com/nilecart/api/internal/domain"
)

// Collection names shared across repositories.
const (
	productsCollection        = "products"
	ordersCollection          = "orders"
	paymentsSubcollection     = "payments"
	discountCodesCollection   = "discountCodes"
	citiesCollection          = "cities"
	shippingMethodsCollection = "shippingMethods"
	settingsCollection        = "settings"

	storeSettingsDocumentID = "store"
)

type localizedTextDocument struct {
	EN string `firestore:"en"`
	AR string `firestore:"ar,omitempty"`
}

func newLocalizedTextDocument(text domain.LocalizedText) localizedTextDocument {
	return localizedTextDocument{
		EN: strings.TrimSpace(text.EN),
		AR: strings.TrimSpace(text.AR),
	}
}

func (d localizedTextDocument) toDomain() domain.LocalizedText {
	return domain.LocalizedText{EN: d.EN, AR: d.AR}
}

type productVariantDocument struct {
	Color      string `firestore:"color"`
	Size       string `firestore:"size"`
	Stock      int    `firestore:"stock"`
	OutOfStock bool   `firestore:"outOfStock"`
}

type productDocument struct {
	Slug          string                   `firestore:"slug"`
	Name          localizedTextDocument    `firestore:"name"`
	Price         int64                    `firestore:"price"`
	DiscountPrice int64                    `firestore:"discountPrice,omitempty"`
	Stock         int                      `firestore:"stock"`
	Variants      []productVariantDocument `firestore:"variants,omitempty"`
	// Available is denormalised on every stock mutation so low-stock queries
	// never need to recompute variant sums client side.
	Available int        `firestore:"available"`
	Active    bool       `firestore:"active"`
	DeletedAt *time.Time `firestore:"deletedAt,omitempty"`
	CreatedAt time.Time  `firestore:"createdAt"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
}

func (p *productDocument) recalculate() {
	if len(p.Variants) == 0 {
		p.Available = p.Stock
		return
	}
	total := 0
	for _, v := range p.Variants {
		if v.OutOfStock {
			continue
		}
		total += v.Stock
	}
	p.Available = total
}

func (p productDocument) sellable() bool {
	return p.Active && p.DeletedAt == nil
}

func (p productDocument) toDomain(id string) domain.Product {
	variants := make([]domain.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		variants[i] = domain.ProductVariant{
			Color:      v.Color,
			Size:       v.Size,
			Stock:      v.Stock,
			OutOfStock: v.OutOfStock,
		}
	}
	if len(variants) == 0 {
		variants = nil
	}
	return domain.Product{
		ID:            id,
		Slug:          p.Slug,
		Name:          p.Name.toDomain(),
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
		Stock:         p.Stock,
		Variants:      variants,
		Active:        p.Active,
		DeletedAt:     p.DeletedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type guestContactDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type addressDocument struct {
	Kind       string `firestore:"kind"`
	Freeform   string `firestore:"freeform,omitempty"`
	Street     string `firestore:"street,omitempty"`
	Apartment  string `firestore:"apartment,omitempty"`
	City       string `firestore:"city,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

func newAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Kind:       string(addr.Kind),
		Freeform:   strings.TrimSpace(addr.Freeform),
		Street:     strings.TrimSpace(addr.Street),
		Apartment:  strings.TrimSpace(addr.Apartment),
		City:       strings.TrimSpace(addr.City),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
	}
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		Kind:       domain.AddressKind(d.Kind),
		Freeform:   d.Freeform,
		Street:     d.Street,
		Apartment:  d.Apartment,
		City:       d.City,
		PostalCode: d.PostalCode,
		Country:    d.Country,
	}
}

type orderLineDocument struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	Color      string `firestore:"color,omitempty"`
	Size       string `firestore:"size,omitempty"`
	Quantity   int    `firestore:"qty"`
	UnitPrice  int64  `firestore:"unitPrice"`
	Total      int64  `firestore:"total"`
}

func (l orderLineDocument) hasVariant() bool {
	return l.Color != "" || l.Size != ""
}

type orderTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Discount int64 `firestore:"discount"`
	Fee      int64 `firestore:"fee"`
	Total    int64 `firestore:"total"`
}

type orderDocument struct {
	Number       string                `firestore:"number"`
	UserRef      string                `firestore:"userRef,omitempty"`
	Email        string                `firestore:"email"`
	Guest        *guestContactDocument `firestore:"guest,omitempty"`
	Lines        []orderLineDocument   `firestore:"lines"`
	Totals       orderTotalsDocument   `firestore:"totals"`
	DiscountCode string                `firestore:"discountCode,omitempty"`
	Address      addressDocument       `firestore:"address"`
	CityRef      string                `firestore:"cityRef,omitempty"`
	CityName     string                `firestore:"cityName,omitempty"`
	Status       string                `firestore:"status"`
	Notes        string                `firestore:"notes,omitempty"`
	CancelReason string                `firestore:"cancelReason,omitempty"`
	ConfirmedAt  *time.Time            `firestore:"confirmedAt,omitempty"`
	ShippedAt    *time.Time            `firestore:"shippedAt,omitempty"`
	DeliveredAt  *time.Time            `firestore:"deliveredAt,omitempty"`
	CancelledAt  *time.Time            `firestore:"cancelledAt,omitempty"`
	CreatedAt    time.Time             `firestore:"createdAt"`
	UpdatedAt    time.Time             `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = orderLineDocument{
			ProductRef: strings.TrimSpace(line.ProductID),
			Name:       line.Name,
			Color:      strings.TrimSpace(line.Color),
			Size:       strings.TrimSpace(line.Size),
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Total:      line.Total,
		}
	}
	var guest *guestContactDocument
	if order.Customer.Guest != nil {
		guest = &guestContactDocument{
			Name:  strings.TrimSpace(order.Customer.Guest.Name),
			Email: strings.TrimSpace(order.Customer.Guest.Email),
			Phone: strings.TrimSpace(order.Customer.Guest.Phone),
		}
	}
	return orderDocument{
		Number:       order.Number,
		UserRef:      strings.TrimSpace(order.Customer.UserID),
		Email:        strings.TrimSpace(order.Customer.Email),
		Guest:        guest,
		Lines:        lines,
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Fee:      order.Totals.Fee,
			Total:    order.Totals.Total,
		},
		DiscountCode: strings.TrimSpace(order.DiscountCode),
		Address:      newAddressDocument(order.Address),
		CityRef:      strings.TrimSpace(order.CityID),
		CityName:     strings.TrimSpace(order.CityName),
		Status:       string(order.Status),
		Notes:        order.Notes,
		CancelReason: order.CancelReason,
		ConfirmedAt:  order.ConfirmedAt,
		ShippedAt:    order.ShippedAt,
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	lines := make([]domain.OrderLine, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = domain.OrderLine{
			ProductID: line.ProductRef,
			Name:      line.Name,
			Color:     line.Color,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     line.Total,
		}
	}
	var guest *domain.GuestContact
	if d.Guest != nil {
		guest = &domain.GuestContact{
			Name:  d.Guest.Name,
			Email: d.Guest.Email,
			Phone: d.Guest.Phone,
		}
	}
	return domain.Order{
		ID:     id,
		Number: d.Number,
		Customer: domain.Customer{
			UserID: d.UserRef,
			Email:  d.Email,
			Guest:  guest,
		},
		Lines: lines,
		Totals: domain.OrderTotals{
			Subtotal: d.Totals.Subtotal,
			Discount: d.Totals.Discount,
			Fee:      d.Totals.Fee,
			Total:    d.Totals.Total,
		},
		DiscountCode: d.DiscountCode,
		Address:      d.Address.toDomain(),
		CityID:       d.CityRef,
		CityName:     d.CityName,
		Status:       domain.OrderStatus(d.Status),
		Notes:        d.Notes,
		CancelReason: d.CancelReason,
		ConfirmedAt:  d.ConfirmedAt,
		ShippedAt:    d.ShippedAt,
		DeliveredAt:  d.DeliveredAt,
		CancelledAt:  d.CancelledAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type paymentDocument struct {
	OrderRef   string     `firestore:"orderRef"`
	Method     string     `firestore:"method"`
	Status     string     `firestore:"status"`
	Amount     int64      `firestore:"amount"`
	ProofRef   string     `firestore:"proofRef,omitempty"`
	ReviewedBy string     `firestore:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `firestore:"reviewedAt,omitempty"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

func newPaymentDocument(payment domain.Payment) paymentDocument {
	return paymentDocument{
		OrderRef:   strings.TrimSpace(payment.OrderID),
		Method:     string(payment.Method),
		Status:     string(payment.Status),
		Amount:     payment.Amount,
		ProofRef:   strings.TrimSpace(payment.ProofRef),
		ReviewedBy: strings.TrimSpace(payment.ReviewedBy),
		ReviewedAt: payment.ReviewedAt,
		CreatedAt:  payment.CreatedAt.UTC(),
		UpdatedAt:  payment.UpdatedAt.UTC(),
	}
}

func (d paymentDocument) toDomain(id string) domain.Payment {
	return domain.Payment{
		ID:         id,
		OrderID:    d.OrderRef,
		Method:     domain.PaymentMethod(d.Method),
		Status:     domain.PaymentStatus(d.Status),
		Amount:     d.Amount,
		ProofRef:   d.ProofRef,
		ReviewedBy: d.ReviewedBy,
		ReviewedAt: d.ReviewedAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type discountCodeDocument struct {
	Code           string     `firestore:"code"`
	Type           string     `firestore:"type"`
	Value          int64      `firestore:"value"`
	MinOrderAmount int64      `firestore:"minOrderAmount,omitempty"`
	ValidFrom      *time.Time `firestore:"validFrom,omitempty"`
	ValidUntil     *time.Time `firestore:"validUntil,omitempty"`
	UsageLimit     int        `firestore:"usageLimit,omitempty"`
	UsedCount      int        `firestore:"usedCount"`
	Enabled        bool       `firestore:"enabled"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

func (d discountCodeDocument) exhausted() bool {
	return d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit
}

func (d discountCodeDocument) toDomain(id string) domain.DiscountCode {
	return domain.DiscountCode{
		ID:             id,
		Code:           d.Code,
		Type:           domain.DiscountType(d.Type),
		Value:          d.Value,
		MinOrderAmount: d.MinOrderAmount,
		ValidFrom:      d.ValidFrom,
		ValidUntil:     d.ValidUntil,
		UsageLimit:     d.UsageLimit,
		UsedCount:      d.UsedCount,
		Enabled:        d.Enabled,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type cityDocument struct {
	Name      localizedTextDocument `firestore:"name"`
	Fee       int64                 `firestore:"fee"`
	Enabled   bool                  `firestore:"enabled"`
	UpdatedAt time.Time             `firestore:"updatedAt"`
}

func (d cityDocument) toDomain(id string) domain.City {
	return domain.City{
		ID:        id,
		Name:      d.Name.toDomain(),
		Fee:       d.Fee,
		Enabled:   d.Enabled,
		UpdatedAt: d.UpdatedAt,
	}
}

type shippingMethodDocument struct {
	Name      localizedTextDocument `firestore:"name"`
	Price     int64                 `firestore:"price"`
	Enabled   bool                  `firestore:"enabled"`
	UpdatedAt time.Time             `firestore:"updatedAt"`
}

func (d shippingMethodDocument) toDomain(id string) domain.ShippingMethod {
	return domain.ShippingMethod{
		ID:        id,
		Name:      d.Name.toDomain(),
		Price:     d.Price,
		Enabled:   d.Enabled,
		UpdatedAt: d.UpdatedAt,
	}
}

type settingsDocument struct {
	PaymentMethods    []string  `firestore:"paymentMethods"`
	LowStockThreshold int       `firestore:"lowStockThreshold,omitempty"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func (d settingsDocument) toDomain() domain.StoreSettings {
	methods := make([]domain.PaymentMethod, 0, len(d.PaymentMethods))
	for _, m := range d.PaymentMethods {
		trimmed := strings.ToLower(strings.TrimSpace(m))
		if trimmed == "" {
			continue
		}
		methods = append(methods, domain.PaymentMethod(trimmed))
	}
	return domain.StoreSettings{
		EnabledPaymentMethods: methods,
		LowStockThreshold:     d.LowStockThreshold,
		UpdatedAt:             d.UpdatedAt,
	}
}
