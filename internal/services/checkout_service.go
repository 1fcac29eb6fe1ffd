package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/repositories"
)

const (
	orderIDPrefix   = "ord_"
	paymentIDPrefix = "pay_"

	defaultOrderNumberPrefix = "NC"
)

// FeatureGates toggles optional storefront behaviour at runtime.
type FeatureGates struct {
	GuestCheckout bool
	Discounts     bool
}

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Quotes      QuoteService
	Orders      repositories.OrderRepository
	Settings    repositories.SettingsRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Mail        MailPublisher
	AdminEmail  string
	Logger      EventLogger
	// NumberPrefix overrides the order-number prefix; empty keeps the default.
	NumberPrefix string
	// Gates restricts optional storefront features; nil enables everything.
	Gates *FeatureGates
}

type checkoutService struct {
	quotes     QuoteService
	orders     repositories.OrderRepository
	settings   repositories.SettingsRepository
	counters   repositories.CounterRepository
	clock      func() time.Time
	newID      func() string
	events       OrderEventPublisher
	mail         MailPublisher
	adminEmail   string
	logger       EventLogger
	numberPrefix string
	gates        FeatureGates
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("checkout service: quote service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = nopEventLogger
	}
	prefix := strings.TrimSpace(deps.NumberPrefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	gates := FeatureGates{GuestCheckout: true, Discounts: true}
	if deps.Gates != nil {
		gates = *deps.Gates
	}

	return &checkoutService{
		quotes:   deps.Quotes,
		orders:   deps.Orders,
		settings: deps.Settings,
		counters: deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:        idGen,
		events:       deps.Events,
		mail:         deps.Mail,
		adminEmail:   strings.TrimSpace(deps.AdminEmail),
		logger:       logger,
		numberPrefix: prefix,
		gates:        gates,
	}, nil
}

// CreateOrder validates intake, prices the cart server side, and persists the
// order/payment pair atomically. Identity problems surface before any catalog
// read so a guest with a broken email never triggers product lookups.
func (s *checkoutService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CheckoutResult, error) {
	customer, err := resolveCustomer(cmd)
	if err != nil {
		return CheckoutResult{}, err
	}
	if customer.IsGuest() && !s.gates.GuestCheckout {
		return CheckoutResult{}, ErrGuestCheckoutDisabled
	}
	if code := strings.TrimSpace(cmd.DiscountCode); code != "" && !s.gates.Discounts {
		return CheckoutResult{}, &DiscountRejectedError{Code: strings.ToUpper(code), Reason: DiscountRejectInvalid}
	}
	address, err := resolveAddress(cmd.Address)
	if err != nil {
		return CheckoutResult{}, err
	}
	if err := s.checkPaymentMethod(ctx, cmd.PaymentMethod); err != nil {
		return CheckoutResult{}, err
	}

	quote, err := s.quotes.Quote(ctx, QuoteCommand{
		Lines:            cmd.Lines,
		DiscountCode:     cmd.DiscountCode,
		ShippingMethodID: cmd.ShippingMethodID,
		CityID:           cmd.CityID,
		Locale:           cmd.Locale,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	now := s.clock()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	order := domain.Order{
		ID:           orderIDPrefix + s.newID(),
		Number:       number,
		Customer:     customer,
		Lines:        quote.Lines,
		Totals:       quote.Totals,
		DiscountCode: quote.DiscountCodeID,
		Address:      address,
		CityID:       strings.TrimSpace(cmd.CityID),
		CityName:     quote.CityName,
		Status:       domain.OrderStatusPending,
		Notes:        strings.TrimSpace(cmd.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	payment := domain.Payment{
		ID:        paymentIDPrefix + s.newID(),
		OrderID:   order.ID,
		Method:    cmd.PaymentMethod,
		Status:    domain.PaymentStatusUnpaid,
		Amount:    quote.Totals.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.orders.Create(ctx, repositories.CreateOrderRequest{
		Order:          order,
		Payment:        payment,
		DiscountCodeID: quote.DiscountCodeID,
		Now:            now,
	})
	if err != nil {
		return CheckoutResult{}, s.mapCreateError(err, quote.DiscountCodeID)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.Number,
		CurrentStatus: string(result.Order.Status),
		ActorID:       customer.UserID,
		OccurredAt:    now,
	})
	s.enqueueMail(ctx, MailMessage{
		Template: mailTemplateOrderConfirmation,
		To:       customer.Email,
		Locale:   cmd.Locale.String(),
		Data: map[string]any{
			"orderNumber": result.Order.Number,
			"total":       result.Order.Totals.Total,
		},
	})
	if s.adminEmail != "" {
		s.enqueueMail(ctx, MailMessage{
			Template: mailTemplateOrderAdminAlert,
			To:       s.adminEmail,
			Data: map[string]any{
				"orderId":     result.Order.ID,
				"orderNumber": result.Order.Number,
				"total":       result.Order.Totals.Total,
			},
		})
	}

	return CheckoutResult{Order: result.Order, Payment: result.Payment}, nil
}

func resolveCustomer(cmd CreateOrderCommand) (domain.Customer, error) {
	if userID := strings.TrimSpace(cmd.UserID); userID != "" {
		return domain.Customer{
			UserID: userID,
			Email:  strings.ToLower(strings.TrimSpace(cmd.UserEmail)),
		}, nil
	}

	if cmd.Guest == nil || strings.TrimSpace(cmd.Guest.Name) == "" {
		return domain.Customer{}, ErrGuestNameRequired
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Guest.Email))
	if email == "" {
		return domain.Customer{}, ErrGuestEmailInvalid
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Customer{}, fmt.Errorf("%w: %s", ErrGuestEmailInvalid, email)
	}

	return domain.Customer{
		Email: email,
		Guest: &domain.GuestContact{
			Name:  strings.TrimSpace(cmd.Guest.Name),
			Email: email,
			Phone: strings.TrimSpace(cmd.Guest.Phone),
		},
	}, nil
}

func resolveAddress(input AddressInput) (domain.Address, error) {
	switch input.Kind {
	case domain.AddressKindFreeform:
		text := strings.TrimSpace(input.Freeform)
		if text == "" {
			return domain.Address{}, fmt.Errorf("%w: freeform address text is required", ErrAddressInvalid)
		}
		return domain.Address{Kind: domain.AddressKindFreeform, Freeform: text}, nil
	case domain.AddressKindStructured:
		street := strings.TrimSpace(input.Street)
		if street == "" {
			return domain.Address{}, fmt.Errorf("%w: street is required", ErrAddressInvalid)
		}
		return domain.Address{
			Kind:       domain.AddressKindStructured,
			Street:     street,
			Apartment:  strings.TrimSpace(input.Apartment),
			City:       strings.TrimSpace(input.City),
			PostalCode: strings.TrimSpace(input.PostalCode),
			Country:    strings.TrimSpace(input.Country),
		}, nil
	default:
		return domain.Address{}, fmt.Errorf("%w: unknown address kind %q", ErrAddressInvalid, input.Kind)
	}
}

// checkPaymentMethod validates the method against storefront settings. A
// missing settings document falls back to accepting both built-in methods.
func (s *checkoutService) checkPaymentMethod(ctx context.Context, method domain.PaymentMethod) error {
	switch method {
	case domain.PaymentMethodCOD, domain.PaymentMethodInstapay:
	default:
		return fmt.Errorf("%w: %q", ErrPaymentMethodNotAvailable, method)
	}

	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if len(settings.EnabledPaymentMethods) == 0 {
		return nil
	}
	if !settings.PaymentMethodEnabled(method) {
		return fmt.Errorf("%w: %q is disabled", ErrPaymentMethodNotAvailable, method)
	}
	return nil
}

func (s *checkoutService) mapCreateError(err error, discountCodeID string) error {
	var discErr *repositories.DiscountError
	if errors.As(err, &discErr) {
		// The code passed the quote check but lost the race for the last
		// redemption; the whole creation rolled back.
		return &DiscountRejectedError{Code: discountCodeID, Reason: DiscountRejectInvalid}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	}
	return mapUnavailable(err)
}

func (s *checkoutService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.numberPrefix, now.Year(), seq), nil
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *checkoutService) enqueueMail(ctx context.Context, message MailMessage) {
	if s.mail == nil || strings.TrimSpace(message.To) == "" {
		return
	}
	if err := s.mail.PublishMail(ctx, message); err != nil {
		s.logger(ctx, "order.mail.publish.failed", map[string]any{
			"template": message.Template,
			"error":    err.Error(),
		})
	}
}
