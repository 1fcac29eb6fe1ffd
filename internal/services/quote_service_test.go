package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/nilecart/api/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newQuoteServiceForTest(t *testing.T, deps QuoteServiceDeps) QuoteService {
	t.Helper()
	if deps.Products == nil {
		deps.Products = &stubProductRepository{}
	}
	if deps.DiscountCodes == nil {
		deps.DiscountCodes = &stubDiscountCodeRepository{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	}
	service, err := NewQuoteService(deps)
	if err != nil {
		t.Fatalf("NewQuoteService: %v", err)
	}
	return service
}

func catalogOf(products ...domain.Product) *stubProductRepository {
	index := make(map[string]domain.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return &stubProductRepository{
		findActiveFunc: func(_ context.Context, ids []string) (map[string]domain.Product, error) {
			out := make(map[string]domain.Product, len(ids))
			for _, id := range ids {
				if p, ok := index[id]; ok {
					out[id] = p
				}
			}
			return out, nil
		},
	}
}

func TestQuoteComputesTotalsFromCatalogPrices(t *testing.T) {
	products := catalogOf(
		domain.Product{ID: "prod-1", Name: domain.LocalizedText{EN: "Mug"}, Price: 2500, Stock: 10, Active: true},
		domain.Product{ID: "prod-2", Name: domain.LocalizedText{EN: "Shirt"}, Price: 8000, DiscountPrice: 6000, Stock: 5, Active: true},
	)
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if quote.Totals.Subtotal != 11000 {
		t.Fatalf("expected subtotal 11000, got %d", quote.Totals.Subtotal)
	}
	if quote.Totals.Total != 11000 {
		t.Fatalf("expected total 11000, got %d", quote.Totals.Total)
	}
	if len(quote.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(quote.Lines))
	}
	if quote.Lines[1].UnitPrice != 6000 {
		t.Fatalf("expected discounted unit price 6000, got %d", quote.Lines[1].UnitPrice)
	}
	if quote.Lines[0].Name != "Mug" {
		t.Fatalf("expected resolved line name Mug, got %q", quote.Lines[0].Name)
	}
}

func TestQuoteIgnoresClientSuppliedPricing(t *testing.T) {
	// The command shape has no price field at all; the only way a price enters
	// the totals is through the catalog lookup.
	products := catalogOf(domain.Product{ID: "prod-1", Name: domain.LocalizedText{EN: "Mug"}, Price: 999, Stock: 3, Active: true})
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-1", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Subtotal != 2997 {
		t.Fatalf("expected subtotal 2997, got %d", quote.Totals.Subtotal)
	}
}

func TestQuoteRejectsMissingProduct(t *testing.T) {
	service := newQuoteServiceForTest(t, QuoteServiceDeps{
		Products: catalogOf(domain.Product{ID: "prod-1", Price: 100, Stock: 1, Active: true}),
	})

	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-missing", Quantity: 1}},
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestQuoteRejectsZeroQuantity(t *testing.T) {
	service := newQuoteServiceForTest(t, QuoteServiceDeps{
		Products: catalogOf(domain.Product{ID: "prod-1", Price: 100, Stock: 5, Active: true}),
	})

	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-1", Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestQuoteAggregatesDuplicateLinesAgainstOnePool(t *testing.T) {
	service := newQuoteServiceForTest(t, QuoteServiceDeps{
		Products: catalogOf(domain.Product{ID: "prod-1", Name: domain.LocalizedText{EN: "Mug"}, Price: 100, Stock: 5, Active: true}),
	})

	// 3 + 3 = 6 requested against 5 available: each line passes alone but the
	// pair oversells.
	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{
			{ProductID: "prod-1", Quantity: 3},
			{ProductID: "prod-1", Quantity: 3},
		},
	})
	var oos *OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if oos.Requested != 6 || oos.Available != 5 {
		t.Fatalf("expected requested 6 available 5, got %+v", oos)
	}
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected error to unwrap to ErrOutOfStock")
	}
}

func TestQuoteVariantStockChecks(t *testing.T) {
	product := domain.Product{
		ID:     "prod-1",
		Name:   domain.LocalizedText{EN: "Shirt"},
		Price:  100,
		Active: true,
		Variants: []domain.ProductVariant{
			{Color: "black", Size: "M", Stock: 2},
			{Color: "black", Size: "L", Stock: 0, OutOfStock: true},
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: catalogOf(product)})

	if _, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-1", Color: "black", Size: "M", Quantity: 2}},
	}); err != nil {
		t.Fatalf("expected in-stock variant to pass, got %v", err)
	}

	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-1", Color: "black", Size: "L", Quantity: 1}},
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected flagged variant to be out of stock, got %v", err)
	}

	_, err = service.Quote(context.Background(), QuoteCommand{
		Lines: []QuoteLine{{ProductID: "prod-1", Color: "red", Size: "M", Quantity: 1}},
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected unknown variant to be out of stock, got %v", err)
	}
}

func TestQuotePercentDiscountRoundsHalfUp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	products := catalogOf(domain.Product{ID: "prod-1", Price: 333, Stock: 10, Active: true})
	codes := &stubDiscountCodeRepository{
		findByCodeFunc: func(_ context.Context, code string) (domain.DiscountCode, error) {
			return domain.DiscountCode{ID: "SAVE15", Code: "SAVE15", Type: domain.DiscountTypePercent, Value: 15, Enabled: true}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, DiscountCodes: codes, Clock: fixedClock(now)})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:        []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		DiscountCode: "save15",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// 333 * 15% = 49.95, rounds to 50.
	if quote.Totals.Discount != 50 {
		t.Fatalf("expected discount 50, got %d", quote.Totals.Discount)
	}
	if quote.Totals.Total != 283 {
		t.Fatalf("expected total 283, got %d", quote.Totals.Total)
	}
	if quote.DiscountCodeID != "SAVE15" {
		t.Fatalf("expected discount code id SAVE15, got %q", quote.DiscountCodeID)
	}
}

func TestQuoteFixedDiscountClampedToSubtotal(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 400, Stock: 10, Active: true})
	codes := &stubDiscountCodeRepository{
		findByCodeFunc: func(_ context.Context, code string) (domain.DiscountCode, error) {
			return domain.DiscountCode{ID: "BIG", Code: "BIG", Type: domain.DiscountTypeFixed, Value: 1000, Enabled: true}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, DiscountCodes: codes})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:        []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		DiscountCode: "BIG",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Discount != 400 {
		t.Fatalf("expected discount clamped to 400, got %d", quote.Totals.Discount)
	}
	if quote.Totals.Total != 0 {
		t.Fatalf("expected total 0, got %d", quote.Totals.Total)
	}
}

func TestQuoteDiscountWindowAndLimits(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(24 * time.Hour)
	after := now.Add(-24 * time.Hour)

	cases := []struct {
		name   string
		code   domain.DiscountCode
		reason DiscountRejectReason
	}{
		{
			name:   "disabled",
			code:   domain.DiscountCode{ID: "C", Type: domain.DiscountTypePercent, Value: 10, Enabled: false},
			reason: DiscountRejectInvalid,
		},
		{
			name:   "exhausted",
			code:   domain.DiscountCode{ID: "C", Type: domain.DiscountTypePercent, Value: 10, Enabled: true, UsageLimit: 5, UsedCount: 5},
			reason: DiscountRejectInvalid,
		},
		{
			name:   "not yet valid",
			code:   domain.DiscountCode{ID: "C", Type: domain.DiscountTypePercent, Value: 10, Enabled: true, ValidFrom: &before},
			reason: DiscountRejectNotYetValid,
		},
		{
			name:   "expired",
			code:   domain.DiscountCode{ID: "C", Type: domain.DiscountTypePercent, Value: 10, Enabled: true, ValidUntil: &after},
			reason: DiscountRejectExpired,
		},
		{
			name:   "minimum not met",
			code:   domain.DiscountCode{ID: "C", Type: domain.DiscountTypePercent, Value: 10, Enabled: true, MinOrderAmount: 5000},
			reason: DiscountRejectMinNotMet,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
			codes := &stubDiscountCodeRepository{
				findByCodeFunc: func(_ context.Context, _ string) (domain.DiscountCode, error) {
					return tc.code, nil
				},
			}
			service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, DiscountCodes: codes, Clock: fixedClock(now)})

			_, err := service.Quote(context.Background(), QuoteCommand{
				Lines:        []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
				DiscountCode: "C",
			})
			var rejected *DiscountRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("expected DiscountRejectedError, got %v", err)
			}
			if rejected.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, rejected.Reason)
			}
		})
	}
}

func TestQuoteUnknownDiscountCodeRejected(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	service := newQuoteServiceForTest(t, QuoteServiceDeps{
		Products: products,
		DiscountCodes: &stubDiscountCodeRepository{
			findByCodeFunc: func(_ context.Context, _ string) (domain.DiscountCode, error) {
				return domain.DiscountCode{}, errStubNotFound
			},
		},
	})

	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines:        []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		DiscountCode: "NOPE",
	})
	if !errors.Is(err, ErrDiscountRejected) {
		t.Fatalf("expected ErrDiscountRejected, got %v", err)
	}
}

func TestQuoteCityFeeApplied(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	cities := &stubCityRepository{
		findByIDFunc: func(_ context.Context, id string) (domain.City, error) {
			return domain.City{ID: id, Name: domain.LocalizedText{EN: "Cairo"}, Fee: 70, Enabled: true}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, Cities: cities})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:  []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		CityID: "city-1",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Fee != 70 {
		t.Fatalf("expected fee 70, got %d", quote.Totals.Fee)
	}
	if quote.Totals.Total != 1070 {
		t.Fatalf("expected total 1070, got %d", quote.Totals.Total)
	}
	if quote.CityName != "Cairo" {
		t.Fatalf("expected city name Cairo, got %q", quote.CityName)
	}
}

func TestQuoteShippingMethodOverridesCityFee(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	cities := &stubCityRepository{
		findByIDFunc: func(_ context.Context, id string) (domain.City, error) {
			return domain.City{ID: id, Name: domain.LocalizedText{EN: "Cairo"}, Fee: 70, Enabled: true}, nil
		},
	}
	methods := &stubShippingMethodRepository{
		findByIDFunc: func(_ context.Context, id string) (domain.ShippingMethod, error) {
			return domain.ShippingMethod{ID: id, Price: 120, Enabled: true}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, Cities: cities, ShippingMethods: methods})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:            []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		CityID:           "city-1",
		ShippingMethodID: "express",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Fee != 120 {
		t.Fatalf("expected method fee 120, got %d", quote.Totals.Fee)
	}
	if quote.CityName != "Cairo" {
		t.Fatalf("expected city name preserved, got %q", quote.CityName)
	}
}

func TestQuoteDisabledCityFallsBackToZeroFee(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	cities := &stubCityRepository{
		findByIDFunc: func(_ context.Context, id string) (domain.City, error) {
			return domain.City{ID: id, Name: domain.LocalizedText{EN: "Aswan"}, Fee: 90, Enabled: false}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, Cities: cities})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:  []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		CityID: "city-1",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Fee != 0 {
		t.Fatalf("expected zero fee for disabled city, got %d", quote.Totals.Fee)
	}
	if quote.Totals.Total != 1000 {
		t.Fatalf("expected total 1000, got %d", quote.Totals.Total)
	}
	if quote.CityName != "" {
		t.Fatalf("expected no city name for disabled city, got %q", quote.CityName)
	}
}

func TestQuoteUnknownCityFallsBackToZeroFee(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	cities := &stubCityRepository{
		findByIDFunc: func(_ context.Context, _ string) (domain.City, error) {
			return domain.City{}, errStubNotFound
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, Cities: cities})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:  []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		CityID: "city-gone",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Fee != 0 {
		t.Fatalf("expected zero fee for unknown city, got %d", quote.Totals.Fee)
	}
	if quote.CityName != "" {
		t.Fatalf("expected no city name for unknown city, got %q", quote.CityName)
	}
}

func TestQuoteDisabledShippingMethodRejected(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 1000, Stock: 10, Active: true})
	methods := &stubShippingMethodRepository{
		findByIDFunc: func(_ context.Context, id string) (domain.ShippingMethod, error) {
			return domain.ShippingMethod{ID: id, Price: 50, Enabled: false}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, ShippingMethods: methods})

	_, err := service.Quote(context.Background(), QuoteCommand{
		Lines:            []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		ShippingMethodID: "express",
	})
	if !errors.Is(err, ErrShippingMethodUnavailable) {
		t.Fatalf("expected ErrShippingMethodUnavailable, got %v", err)
	}
}

func TestQuoteTotalNeverNegative(t *testing.T) {
	products := catalogOf(domain.Product{ID: "prod-1", Price: 100, Stock: 10, Active: true})
	codes := &stubDiscountCodeRepository{
		findByCodeFunc: func(_ context.Context, _ string) (domain.DiscountCode, error) {
			return domain.DiscountCode{ID: "ALL", Type: domain.DiscountTypePercent, Value: 100, Enabled: true}, nil
		},
	}
	service := newQuoteServiceForTest(t, QuoteServiceDeps{Products: products, DiscountCodes: codes})

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Lines:        []QuoteLine{{ProductID: "prod-1", Quantity: 1}},
		DiscountCode: "ALL",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.Total != 0 {
		t.Fatalf("expected total 0, got %d", quote.Totals.Total)
	}
}

func TestQuoteEmptyCartRejected(t *testing.T) {
	service := newQuoteServiceForTest(t, QuoteServiceDeps{})
	_, err := service.Quote(context.Background(), QuoteCommand{})
	if !errors.Is(err, ErrQuoteInvalidInput) {
		t.Fatalf("expected ErrQuoteInvalidInput, got %v", err)
	}
}
