package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/iterator"

	pfirestore "github.com/nilecart/api/internal/platform/firestore"
	"github.com/nilecart/api/internal/repositories"
)

// Registry assembles the Firestore-backed repositories over a shared provider.
type Registry struct {
	provider *pfirestore.Provider

	products        *ProductRepository
	orders          *OrderRepository
	payments        *PaymentRepository
	inventory       *InventoryRepository
	discountCodes   *DiscountCodeRepository
	cities          *CityRepository
	shippingMethods *ShippingMethodRepository
	settings        *SettingsRepository
	counters        *CounterRepository
	health          repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository against the provider and registers the
// Firestore probe used by health checks.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	reg := &Registry{provider: provider}

	var err error
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if reg.payments, err = NewPaymentRepository(provider); err != nil {
		return nil, fmt.Errorf("build payment repository: %w", err)
	}
	if reg.inventory, err = NewInventoryRepository(provider); err != nil {
		return nil, fmt.Errorf("build inventory repository: %w", err)
	}
	if reg.discountCodes, err = NewDiscountCodeRepository(provider); err != nil {
		return nil, fmt.Errorf("build discount code repository: %w", err)
	}
	if reg.cities, err = NewCityRepository(provider); err != nil {
		return nil, fmt.Errorf("build city repository: %w", err)
	}
	if reg.shippingMethods, err = NewShippingMethodRepository(provider); err != nil {
		return nil, fmt.Errorf("build shipping method repository: %w", err)
	}
	if reg.settings, err = NewSettingsRepository(provider); err != nil {
		return nil, fmt.Errorf("build settings repository: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				iter := client.Collection(settingsCollection).Limit(1).Documents(ctx)
				defer iter.Stop()
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	reg.health = health

	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository               { return r.products }
func (r *Registry) Orders() repositories.OrderRepository                  { return r.orders }
func (r *Registry) Payments() repositories.PaymentRepository              { return r.payments }
func (r *Registry) Inventory() repositories.InventoryRepository           { return r.inventory }
func (r *Registry) DiscountCodes() repositories.DiscountCodeRepository    { return r.discountCodes }
func (r *Registry) Cities() repositories.CityRepository                   { return r.cities }
func (r *Registry) ShippingMethods() repositories.ShippingMethodRepository { return r.shippingMethods }
func (r *Registry) Settings() repositories.SettingsRepository             { return r.settings }
func (r *Registry) Counters() repositories.CounterRepository              { return r.counters }
func (r *Registry) Health() repositories.HealthRepository                 { return r.health }
