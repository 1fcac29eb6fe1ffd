package handlers

import (
	"context"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/services"
)

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CreateOrderCommand) (services.CheckoutResult, error)
	commands   []services.CreateOrderCommand
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.CheckoutResult, error) {
	s.commands = append(s.commands, cmd)
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.CheckoutResult{}, nil
}

type stubOrderService struct {
	getFunc        func(ctx context.Context, orderID string, access services.OrderAccess) (domain.Order, error)
	listFunc       func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error)
	transitionFunc func(ctx context.Context, cmd services.TransitionOrderCommand) (domain.Order, error)
	cancelFunc     func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
	lowStockFunc   func(ctx context.Context, query services.LowStockQuery) (domain.CursorPage[domain.StockLevel], error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, access services.OrderAccess) (domain.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID, access)
	}
	return domain.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, query)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.TransitionOrderCommand) (domain.Order, error) {
	if s.transitionFunc != nil {
		return s.transitionFunc(ctx, cmd)
	}
	return domain.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return domain.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListLowStock(ctx context.Context, query services.LowStockQuery) (domain.CursorPage[domain.StockLevel], error) {
	if s.lowStockFunc != nil {
		return s.lowStockFunc(ctx, query)
	}
	return domain.CursorPage[domain.StockLevel]{}, nil
}

type stubPaymentService struct {
	listFunc   func(ctx context.Context, orderID string, access services.OrderAccess) ([]domain.Payment, error)
	uploadFunc func(ctx context.Context, cmd services.ProofUploadCommand) (services.ProofUpload, error)
	attachFunc func(ctx context.Context, cmd services.AttachProofCommand) (domain.Payment, error)
	reviewFunc func(ctx context.Context, cmd services.ReviewPaymentCommand) (domain.Payment, error)
}

func (s *stubPaymentService) ListPayments(ctx context.Context, orderID string, access services.OrderAccess) ([]domain.Payment, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, orderID, access)
	}
	return nil, nil
}

func (s *stubPaymentService) CreateProofUpload(ctx context.Context, cmd services.ProofUploadCommand) (services.ProofUpload, error) {
	if s.uploadFunc != nil {
		return s.uploadFunc(ctx, cmd)
	}
	return services.ProofUpload{}, services.ErrPaymentNotFound
}

func (s *stubPaymentService) AttachProof(ctx context.Context, cmd services.AttachProofCommand) (domain.Payment, error) {
	if s.attachFunc != nil {
		return s.attachFunc(ctx, cmd)
	}
	return domain.Payment{}, services.ErrPaymentNotFound
}

func (s *stubPaymentService) Review(ctx context.Context, cmd services.ReviewPaymentCommand) (domain.Payment, error) {
	if s.reviewFunc != nil {
		return s.reviewFunc(ctx, cmd)
	}
	return domain.Payment{}, services.ErrPaymentNotFound
}

type stubHealthSystemService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthSystemService) HealthReport(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

type stubRateLimiter struct {
	allow bool
	keys  []string
}

func (s *stubRateLimiter) Allow(key string) bool {
	s.keys = append(s.keys, key)
	return s.allow
}

var (
	_ services.CheckoutService = (*stubCheckoutService)(nil)
	_ services.OrderService    = (*stubOrderService)(nil)
	_ services.PaymentService  = (*stubPaymentService)(nil)
	_ services.SystemService   = (*stubHealthSystemService)(nil)
)
