package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/repositories"
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
}

var cancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusConfirmed,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Inventory repositories.InventoryRepository
	Products  repositories.ProductRepository
	Clock     func() time.Time
	Events    OrderEventPublisher
	Mail      MailPublisher
	Logger    EventLogger
	// LowStockThreshold applies when a low-stock query omits its own.
	LowStockThreshold int
}

type orderService struct {
	orders            repositories.OrderRepository
	inventory         repositories.InventoryRepository
	products          repositories.ProductRepository
	clock             func() time.Time
	events            OrderEventPublisher
	mail              MailPublisher
	logger            EventLogger
	lowStockThreshold int
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = nopEventLogger
	}

	return &orderService{
		orders:    deps.Orders,
		inventory: deps.Inventory,
		products:  deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:            deps.Events,
		mail:              deps.Mail,
		logger:            logger,
		lowStockThreshold: deps.LowStockThreshold,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, access OrderAccess) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if err := authorizeOrderAccess(order, access); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
	filter := repositories.OrderListFilter{
		DateRange:  query.DateRange,
		Pagination: query.Pagination,
	}
	for _, status := range query.Status {
		filter.Status = append(filter.Status, string(status))
	}

	if !query.Access.Admin {
		userID := strings.TrimSpace(query.Access.UserID)
		email := strings.TrimSpace(query.Access.Email)
		if userID == "" && email == "" {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: listing requires an identity", ErrOrderAccessDenied)
		}
		filter.UserID = userID
		if userID == "" {
			filter.Email = email
		}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus drives the admin state machine. Transitions with stock
// effects run through the inventory repository so the status flip and the
// stock mutation commit in one transaction.
func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if target == "" {
		return domain.Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !canTransition(order.Status, target) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	prev := order.Status

	var updated domain.Order
	switch target {
	case domain.OrderStatusConfirmed:
		result, err := s.inventory.ConfirmOrder(ctx, repositories.ConfirmOrderRequest{OrderID: orderID, Now: now})
		if err != nil {
			return domain.Order{}, s.mapInventoryError(err)
		}
		updated = result.Order
	case domain.OrderStatusCancelled:
		result, err := s.inventory.CancelOrder(ctx, repositories.CancelOrderRequest{OrderID: orderID, Reason: cmd.Reason, Now: now})
		if err != nil {
			return domain.Order{}, s.mapInventoryError(err)
		}
		updated = result.Order
	default:
		updated, err = s.orders.UpdateStatus(ctx, repositories.UpdateOrderStatusRequest{
			OrderID: orderID,
			From:    order.Status,
			To:      target,
			Now:     now,
		})
		if err != nil {
			return domain.Order{}, s.mapInventoryError(err)
		}
	}

	s.publishStatusChange(ctx, updated, prev, cmd.ActorID, now)
	s.notifyStatusChange(ctx, updated, prev)

	return updated, nil
}

// Cancel aborts an order on behalf of its owner or an admin. Owners may only
// cancel orders that are still pending; admins may also cancel confirmed
// orders, which restores the committed stock.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if err := authorizeOrderAccess(order, cmd.Access); err != nil {
		return domain.Order{}, err
	}

	if !slices.Contains(cancellableStatuses, order.Status) {
		return domain.Order{}, fmt.Errorf("%w: order is %s", ErrOrderInvalidState, order.Status)
	}
	if !cmd.Access.Admin && order.Status != domain.OrderStatusPending {
		return domain.Order{}, fmt.Errorf("%w: only pending orders can be cancelled by their owner", ErrOrderInvalidState)
	}

	now := s.clock()
	prev := order.Status

	result, err := s.inventory.CancelOrder(ctx, repositories.CancelOrderRequest{
		OrderID: orderID,
		Reason:  cmd.Reason,
		Now:     now,
	})
	if err != nil {
		return domain.Order{}, s.mapInventoryError(err)
	}

	s.publishStatusChange(ctx, result.Order, prev, cmd.Access.UserID, now)
	s.enqueueMail(ctx, MailMessage{
		Template: mailTemplateOrderCancelled,
		To:       result.Order.Customer.Email,
		Data: map[string]any{
			"orderNumber": result.Order.Number,
		},
	})

	return result.Order, nil
}

func (s *orderService) ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[domain.StockLevel], error) {
	if s.products == nil {
		return domain.CursorPage[domain.StockLevel]{}, errors.New("order service: product repository not configured")
	}
	threshold := query.Threshold
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	page, err := s.products.ListLowStock(ctx, repositories.LowStockQuery{
		Threshold: threshold,
		PageSize:  query.PageSize,
		PageToken: query.PageToken,
	})
	if err != nil {
		return domain.CursorPage[domain.StockLevel]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func authorizeOrderAccess(order domain.Order, access OrderAccess) error {
	if access.Admin {
		return nil
	}
	if userID := strings.TrimSpace(access.UserID); userID != "" {
		if order.Customer.UserID == userID {
			return nil
		}
		return fmt.Errorf("%w: order belongs to another user", ErrOrderAccessDenied)
	}
	if email := strings.ToLower(strings.TrimSpace(access.Email)); email != "" {
		if order.Customer.Email == email {
			return nil
		}
	}
	return fmt.Errorf("%w: identity does not match order", ErrOrderAccessDenied)
}

func canTransition(current, target domain.OrderStatus) bool {
	return slices.Contains(orderStateTransitions[current], target)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}
	return err
}

// mapInventoryError translates the consistency-transaction errors into the
// service vocabulary, surfacing stock shortfalls with their line details.
func (s *orderService) mapInventoryError(err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return &OutOfStockError{
				ProductID: invErr.ProductID,
				Name:      invErr.Product,
				Requested: invErr.Requested,
				Available: invErr.Available,
			}
		case repositories.InventoryErrorProductNotFound, repositories.InventoryErrorVariantNotFound:
			return &OutOfStockError{
				ProductID: invErr.ProductID,
				Name:      invErr.Product,
				Requested: invErr.Requested,
			}
		case repositories.InventoryErrorOrderNotFound:
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repositories.InventoryErrorInvalidOrderState:
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) publishStatusChange(ctx context.Context, order domain.Order, prev domain.OrderStatus, actorID string, now time.Time) {
	if s.events == nil {
		return
	}
	err := s.events.PublishOrderEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		PreviousStatus: string(prev),
		CurrentStatus:  string(order.Status),
		ActorID:        strings.TrimSpace(actorID),
		OccurredAt:     now,
	})
	if err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   orderEventStatusChanged,
			"order":  order.ID,
			"status": string(order.Status),
			"error":  err.Error(),
		})
	}
}

func (s *orderService) notifyStatusChange(ctx context.Context, order domain.Order, prev domain.OrderStatus) {
	template := mailTemplateOrderStatusUpdate
	if order.Status == domain.OrderStatusCancelled {
		template = mailTemplateOrderCancelled
	}
	s.enqueueMail(ctx, MailMessage{
		Template: template,
		To:       order.Customer.Email,
		Data: map[string]any{
			"orderNumber": order.Number,
			"from":        string(prev),
			"to":          string(order.Status),
		},
	})
}

func (s *orderService) enqueueMail(ctx context.Context, message MailMessage) {
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
