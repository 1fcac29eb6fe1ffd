package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/repositories"
)

// QuoteServiceDeps bundles collaborators required to construct the quote service.
type QuoteServiceDeps struct {
	Products        repositories.ProductRepository
	DiscountCodes   repositories.DiscountCodeRepository
	Cities          repositories.CityRepository
	ShippingMethods repositories.ShippingMethodRepository
	Clock           func() time.Time
}

type quoteService struct {
	products        repositories.ProductRepository
	discountCodes   repositories.DiscountCodeRepository
	cities          repositories.CityRepository
	shippingMethods repositories.ShippingMethodRepository
	clock           func() time.Time
}

var _ QuoteService = (*quoteService)(nil)

// NewQuoteService wires dependencies into a concrete QuoteService implementation.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Products == nil {
		return nil, errors.New("quote service: product repository is required")
	}
	if deps.DiscountCodes == nil {
		return nil, errors.New("quote service: discount code repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &quoteService{
		products:        deps.Products,
		discountCodes:   deps.DiscountCodes,
		cities:          deps.Cities,
		shippingMethods: deps.ShippingMethods,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Quote prices the cart against the current catalog snapshot. Availability is
// advisory here; the binding stock check happens again at confirmation time.
func (s *quoteService) Quote(ctx context.Context, cmd QuoteCommand) (Quote, error) {
	if len(cmd.Lines) == 0 {
		return Quote{}, fmt.Errorf("%w: at least one line is required", ErrQuoteInvalidInput)
	}

	ids := make([]string, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return Quote{}, fmt.Errorf("%w: line product id is required", ErrQuoteInvalidInput)
		}
		ids = append(ids, id)
	}

	products, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return Quote{}, mapUnavailable(err)
	}

	for _, line := range cmd.Lines {
		id := strings.TrimSpace(line.ProductID)
		if _, ok := products[id]; !ok {
			return Quote{}, fmt.Errorf("%w: product %s", ErrProductUnavailable, id)
		}
		if line.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: product %s quantity %d", ErrInvalidQuantity, id, line.Quantity)
		}
	}

	if err := checkAvailability(cmd.Lines, products); err != nil {
		return Quote{}, err
	}

	lines := make([]domain.OrderLine, 0, len(cmd.Lines))
	var subtotal int64
	for _, line := range cmd.Lines {
		product := products[strings.TrimSpace(line.ProductID)]
		unit := product.EffectiveUnitPrice()
		total, err := multiplyPrice(unit, line.Quantity)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: product %s: %v", ErrQuoteInvalidInput, product.ID, err)
		}
		if subtotal > math.MaxInt64-total {
			return Quote{}, fmt.Errorf("%w: subtotal overflow", ErrQuoteInvalidInput)
		}
		subtotal += total
		lines = append(lines, domain.OrderLine{
			ProductID: product.ID,
			Name:      product.Name.Resolve(cmd.Locale),
			Color:     strings.TrimSpace(line.Color),
			Size:      strings.TrimSpace(line.Size),
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Total:     total,
		})
	}

	fee, cityName, err := s.resolveDeliveryFee(ctx, cmd)
	if err != nil {
		return Quote{}, err
	}

	var discount int64
	var discountCodeID string
	if code := strings.TrimSpace(cmd.DiscountCode); code != "" {
		amount, codeID, err := s.resolveDiscount(ctx, code, subtotal)
		if err != nil {
			return Quote{}, err
		}
		discount = amount
		discountCodeID = codeID
	}

	total := subtotal - discount + fee
	if total < 0 {
		total = 0
	}

	return Quote{
		Lines: lines,
		Totals: domain.OrderTotals{
			Subtotal: subtotal,
			Discount: discount,
			Fee:      fee,
			Total:    total,
		},
		DiscountCodeID: discountCodeID,
		CityName:       cityName,
	}, nil
}

// checkAvailability aggregates requested quantities per stock pool before
// comparing, so two lines of the same variant cannot pass individually while
// jointly overselling.
func checkAvailability(lines []QuoteLine, products map[string]domain.Product) error {
	type poolKey struct {
		productID string
		color     string
		size      string
	}
	requested := make(map[poolKey]int, len(lines))
	order := make([]poolKey, 0, len(lines))
	for _, line := range lines {
		key := poolKey{
			productID: strings.TrimSpace(line.ProductID),
			color:     strings.TrimSpace(line.Color),
			size:      strings.TrimSpace(line.Size),
		}
		if _, ok := requested[key]; !ok {
			order = append(order, key)
		}
		requested[key] += line.Quantity
	}

	for _, key := range order {
		product := products[key.productID]
		var available int
		switch {
		case key.color != "" || key.size != "":
			if !product.HasVariants() {
				return fmt.Errorf("%w: product %s has no variants", ErrProductUnavailable, key.productID)
			}
			available = product.VariantAvailableStock(key.color, key.size)
		default:
			available = product.AvailableStock()
		}
		if qty := requested[key]; qty > available {
			return &OutOfStockError{
				ProductID: key.productID,
				Name:      product.Name.EN,
				Requested: qty,
				Available: available,
			}
		}
	}
	return nil
}

func (s *quoteService) resolveDeliveryFee(ctx context.Context, cmd QuoteCommand) (int64, string, error) {
	var cityName string
	var cityFee int64
	cityResolved := false
	if cityID := strings.TrimSpace(cmd.CityID); cityID != "" {
		if s.cities == nil {
			return 0, "", errors.New("quote service: city repository not configured")
		}
		city, err := s.cities.FindByID(ctx, cityID)
		switch {
		case err != nil && isNotFound(err):
			// Unknown city: the quote still goes through with no delivery fee.
		case err != nil:
			return 0, "", mapUnavailable(err)
		case city.Enabled:
			cityName = city.Name.Resolve(cmd.Locale)
			cityFee = city.Fee
			cityResolved = true
		}
	}

	if methodID := strings.TrimSpace(cmd.ShippingMethodID); methodID != "" {
		if s.shippingMethods == nil {
			return 0, "", errors.New("quote service: shipping method repository not configured")
		}
		method, err := s.shippingMethods.FindByID(ctx, methodID)
		if err != nil {
			if isNotFound(err) {
				return 0, "", fmt.Errorf("%w: %s", ErrShippingMethodUnavailable, methodID)
			}
			return 0, "", mapUnavailable(err)
		}
		if !method.Enabled {
			return 0, "", fmt.Errorf("%w: %s", ErrShippingMethodUnavailable, methodID)
		}
		return clampFee(method.Price), cityName, nil
	}

	if cityResolved {
		return clampFee(cityFee), cityName, nil
	}
	return 0, cityName, nil
}

func (s *quoteService) resolveDiscount(ctx context.Context, code string, subtotal int64) (int64, string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	dc, err := s.discountCodes.FindByCode(ctx, normalized)
	if err != nil {
		if isNotFound(err) {
			return 0, "", &DiscountRejectedError{Code: normalized, Reason: DiscountRejectInvalid}
		}
		return 0, "", mapUnavailable(err)
	}

	now := s.clock()
	switch {
	case !dc.Enabled, dc.Exhausted():
		return 0, "", &DiscountRejectedError{Code: normalized, Reason: DiscountRejectInvalid}
	case dc.ValidFrom != nil && now.Before(*dc.ValidFrom):
		return 0, "", &DiscountRejectedError{Code: normalized, Reason: DiscountRejectNotYetValid}
	case dc.ValidUntil != nil && now.After(*dc.ValidUntil):
		return 0, "", &DiscountRejectedError{Code: normalized, Reason: DiscountRejectExpired}
	case dc.MinOrderAmount > 0 && subtotal < dc.MinOrderAmount:
		return 0, "", &DiscountRejectedError{Code: normalized, Reason: DiscountRejectMinNotMet}
	}

	return discountAmount(dc, subtotal), dc.ID, nil
}

// discountAmount computes the deduction, clamped so it never exceeds the
// subtotal. Percentages round half up.
func discountAmount(dc domain.DiscountCode, subtotal int64) int64 {
	var amount int64
	switch dc.Type {
	case domain.DiscountTypePercent:
		value := dc.Value
		if value < 0 {
			value = 0
		}
		if value > 100 {
			value = 100
		}
		amount = (subtotal*value + 50) / 100
	case domain.DiscountTypeFixed:
		amount = dc.Value
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

func multiplyPrice(unit int64, quantity int) (int64, error) {
	if unit < 0 {
		return 0, errors.New("negative unit price")
	}
	qty := int64(quantity)
	if unit > 0 && qty > math.MaxInt64/unit {
		return 0, errors.New("line total overflow")
	}
	return unit * qty, nil
}

func clampFee(fee int64) int64 {
	if fee < 0 {
		return 0
	}
	return fee
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
