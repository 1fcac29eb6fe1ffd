package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound    = &stubRepoError{notFound: true}
	errStubUnavailable = &stubRepoError{unavailable: true}
)

type stubProductRepository struct {
	findActiveFunc   func(ctx context.Context, ids []string) (map[string]domain.Product, error)
	findByIDFunc     func(ctx context.Context, id string) (domain.Product, error)
	listLowStockFunc func(ctx context.Context, query repositories.LowStockQuery) (domain.CursorPage[domain.StockLevel], error)
}

func (s *stubProductRepository) FindActiveByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if s.findActiveFunc == nil {
		return nil, errors.New("findActiveFunc not configured")
	}
	return s.findActiveFunc(ctx, ids)
}

func (s *stubProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if s.findByIDFunc == nil {
		return domain.Product{}, errors.New("findByIDFunc not configured")
	}
	return s.findByIDFunc(ctx, id)
}

func (s *stubProductRepository) ListLowStock(ctx context.Context, query repositories.LowStockQuery) (domain.CursorPage[domain.StockLevel], error) {
	if s.listLowStockFunc == nil {
		return domain.CursorPage[domain.StockLevel]{}, errors.New("listLowStockFunc not configured")
	}
	return s.listLowStockFunc(ctx, query)
}

type stubDiscountCodeRepository struct {
	findByCodeFunc func(ctx context.Context, code string) (domain.DiscountCode, error)
}

func (s *stubDiscountCodeRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	if s.findByCodeFunc == nil {
		return domain.DiscountCode{}, errStubNotFound
	}
	return s.findByCodeFunc(ctx, code)
}

type stubCityRepository struct {
	findByIDFunc func(ctx context.Context, id string) (domain.City, error)
}

func (s *stubCityRepository) FindByID(ctx context.Context, id string) (domain.City, error) {
	if s.findByIDFunc == nil {
		return domain.City{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, id)
}

type stubShippingMethodRepository struct {
	findByIDFunc func(ctx context.Context, id string) (domain.ShippingMethod, error)
}

func (s *stubShippingMethodRepository) FindByID(ctx context.Context, id string) (domain.ShippingMethod, error) {
	if s.findByIDFunc == nil {
		return domain.ShippingMethod{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, id)
}

type stubSettingsRepository struct {
	getFunc func(ctx context.Context) (domain.StoreSettings, error)
}

func (s *stubSettingsRepository) Get(ctx context.Context) (domain.StoreSettings, error) {
	if s.getFunc == nil {
		return domain.StoreSettings{}, errStubNotFound
	}
	return s.getFunc(ctx)
}

type stubOrderRepository struct {
	createFunc       func(ctx context.Context, req repositories.CreateOrderRequest) (repositories.CreateOrderResult, error)
	findByIDFunc     func(ctx context.Context, id string) (domain.Order, error)
	listFunc         func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateStatusFunc func(ctx context.Context, req repositories.UpdateOrderStatusRequest) (domain.Order, error)
}

func (s *stubOrderRepository) Create(ctx context.Context, req repositories.CreateOrderRequest) (repositories.CreateOrderResult, error) {
	if s.createFunc == nil {
		return repositories.CreateOrderResult{}, errors.New("createFunc not configured")
	}
	return s.createFunc(ctx, req)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if s.findByIDFunc == nil {
		return domain.Order{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, id)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("listFunc not configured")
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, req repositories.UpdateOrderStatusRequest) (domain.Order, error) {
	if s.updateStatusFunc == nil {
		return domain.Order{}, errors.New("updateStatusFunc not configured")
	}
	return s.updateStatusFunc(ctx, req)
}

type stubInventoryRepository struct {
	confirmFunc func(ctx context.Context, req repositories.ConfirmOrderRequest) (repositories.ConfirmOrderResult, error)
	cancelFunc  func(ctx context.Context, req repositories.CancelOrderRequest) (repositories.CancelOrderResult, error)
}

func (s *stubInventoryRepository) ConfirmOrder(ctx context.Context, req repositories.ConfirmOrderRequest) (repositories.ConfirmOrderResult, error) {
	if s.confirmFunc == nil {
		return repositories.ConfirmOrderResult{}, errors.New("confirmFunc not configured")
	}
	return s.confirmFunc(ctx, req)
}

func (s *stubInventoryRepository) CancelOrder(ctx context.Context, req repositories.CancelOrderRequest) (repositories.CancelOrderResult, error) {
	if s.cancelFunc == nil {
		return repositories.CancelOrderResult{}, errors.New("cancelFunc not configured")
	}
	return s.cancelFunc(ctx, req)
}

type stubPaymentRepository struct {
	listFunc        func(ctx context.Context, orderID string) ([]domain.Payment, error)
	findByIDFunc    func(ctx context.Context, orderID, paymentID string) (domain.Payment, error)
	attachProofFunc func(ctx context.Context, req repositories.AttachProofRequest) (domain.Payment, error)
	reviewFunc      func(ctx context.Context, req repositories.ReviewPaymentRequest) (domain.Payment, error)
}

func (s *stubPaymentRepository) List(ctx context.Context, orderID string) ([]domain.Payment, error) {
	if s.listFunc == nil {
		return nil, errors.New("listFunc not configured")
	}
	return s.listFunc(ctx, orderID)
}

func (s *stubPaymentRepository) FindByID(ctx context.Context, orderID, paymentID string) (domain.Payment, error) {
	if s.findByIDFunc == nil {
		return domain.Payment{}, errStubNotFound
	}
	return s.findByIDFunc(ctx, orderID, paymentID)
}

func (s *stubPaymentRepository) AttachProof(ctx context.Context, req repositories.AttachProofRequest) (domain.Payment, error) {
	if s.attachProofFunc == nil {
		return domain.Payment{}, errors.New("attachProofFunc not configured")
	}
	return s.attachProofFunc(ctx, req)
}

func (s *stubPaymentRepository) Review(ctx context.Context, req repositories.ReviewPaymentRequest) (domain.Payment, error) {
	if s.reviewFunc == nil {
		return domain.Payment{}, errors.New("reviewFunc not configured")
	}
	return s.reviewFunc(ctx, req)
}

type stubCounterRepository struct {
	nextFunc func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFunc == nil {
		return 1, nil
	}
	return s.nextFunc(ctx, counterID, step)
}

func (s *stubCounterRepository) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubEventPublisher struct {
	events []OrderEvent
	err    error
}

func (s *stubEventPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubMailPublisher struct {
	messages []MailMessage
	err      error
}

func (s *stubMailPublisher) PublishMail(_ context.Context, message MailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

type stubProofSigner struct {
	signFunc func(ctx context.Context, object, contentType string) (string, time.Time, error)
}

func (s *stubProofSigner) SignedUploadURL(ctx context.Context, object, contentType string) (string, time.Time, error) {
	if s.signFunc == nil {
		return "", time.Time{}, errors.New("signFunc not configured")
	}
	return s.signFunc(ctx, object, contentType)
}
