package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nilecart/api/internal/platform/config"
	"github.com/nilecart/api/internal/repositories"
	"github.com/nilecart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Quotes   services.QuoteService
	Checkout services.CheckoutService
	Orders   services.OrderService
	Payments services.PaymentService
	System   services.SystemService
}

// Dependencies carries infrastructure collaborators built outside the container,
// such as Pub/Sub publishers and the storage signer. Every field is optional;
// services degrade gracefully when a collaborator is absent.
type Dependencies struct {
	Events services.OrderEventPublisher
	Mail   services.MailPublisher
	Signer services.ProofURLSigner
	Logger services.EventLogger
	Build  services.BuildInfo
	Clock  func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	quoteSvc, err := services.NewQuoteService(services.QuoteServiceDeps{
		Products:        reg.Products(),
		DiscountCodes:   reg.DiscountCodes(),
		Cities:          reg.Cities(),
		ShippingMethods: reg.ShippingMethods(),
		Clock:           clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build quote service: %w", err)
	}
	svc.Quotes = quoteSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Quotes:       quoteSvc,
		Orders:       reg.Orders(),
		Settings:     reg.Settings(),
		Counters:     reg.Counters(),
		Clock:        clock,
		Events:       deps.Events,
		Mail:         deps.Mail,
		AdminEmail:   cfg.Notifications.AdminEmail,
		Logger:       deps.Logger,
		NumberPrefix: cfg.Orders.NumberPrefix,
		Gates: &services.FeatureGates{
			GuestCheckout: cfg.Features.EnableGuestCheckout,
			Discounts:     cfg.Features.EnableDiscounts,
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    reg.Orders(),
		Inventory: reg.Inventory(),
		Products:  reg.Products(),
		Clock:             clock,
		Events:            deps.Events,
		Mail:              deps.Mail,
		Logger:            deps.Logger,
		LowStockThreshold: cfg.Orders.LowStockThreshold,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:   reg.Orders(),
		Payments: reg.Payments(),
		Signer:   deps.Signer,
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
