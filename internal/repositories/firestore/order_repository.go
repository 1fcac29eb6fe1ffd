package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/nilecart/api/internal/domain"
	pfirestore "github.com/nilecart/api/internal/platform/firestore"
	"github.com/nilecart/api/internal/platform/pagination"
	"github.com/nilecart/api/internal/repositories"
)

// OrderRepository persists order aggregates. The creation transaction writes
// the order document, its payment subdocument, and the discount redemption as
// one atomic unit.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, orders: orders}, nil
}

func (r *OrderRepository) Create(ctx context.Context, req repositories.CreateOrderRequest) (repositories.CreateOrderResult, error) {
	if r == nil || r.provider == nil {
		return repositories.CreateOrderResult{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		return repositories.CreateOrderResult{}, errors.New("orders.create: order id is required")
	}
	if strings.TrimSpace(req.Payment.ID) == "" {
		return repositories.CreateOrderResult{}, errors.New("orders.create: payment id is required")
	}
	if len(req.Order.Lines) == 0 {
		return repositories.CreateOrderResult{}, errors.New("orders.create: at least one line is required")
	}

	now := req.Now.UTC()
	order := req.Order
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	payment := req.Payment
	payment.OrderID = order.ID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.CreateOrderResult{}, pfirestore.WrapError("orders.create", err)
	}

	discountID := strings.TrimSpace(req.DiscountCodeID)
	orderRef := client.Collection(ordersCollection).Doc(order.ID)
	paymentRef := orderRef.Collection(paymentsSubcollection).Doc(payment.ID)

	var result repositories.CreateOrderResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// All reads precede writes inside a Firestore transaction, so the
		// discount guard runs first.
		var discountDoc discountCodeDocument
		var discountRef *firestore.DocumentRef
		if discountID != "" {
			discountRef = client.Collection(discountCodesCollection).Doc(discountID)
			snap, err := tx.Get(discountRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewDiscountError(repositories.DiscountErrorNotFound, fmt.Sprintf("discount code %s not found", discountID), err)
				}
				return err
			}
			if err := snap.DataTo(&discountDoc); err != nil {
				return fmt.Errorf("decode discount code %s: %w", discountID, err)
			}
			if !discountDoc.Enabled || discountDoc.exhausted() {
				return repositories.NewDiscountError(repositories.DiscountErrorExhausted, fmt.Sprintf("discount code %s can no longer be redeemed", discountID), nil)
			}
		}

		orderDoc := newOrderDocument(order)
		if err := tx.Create(orderRef, orderDoc); err != nil {
			return err
		}
		if err := tx.Create(paymentRef, newPaymentDocument(payment)); err != nil {
			return err
		}
		if discountRef != nil {
			discountDoc.UsedCount++
			discountDoc.UpdatedAt = now
			if err := tx.Set(discountRef, discountDoc); err != nil {
				return err
			}
		}

		result = repositories.CreateOrderResult{
			Order:   orderDoc.toDomain(order.ID),
			Payment: newPaymentDocument(payment).toDomain(payment.ID),
		}
		return nil
	})
	if err != nil {
		return repositories.CreateOrderResult{}, wrapOrderError("orders.create", err)
	}
	return result, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("orders.findById: order id is required")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	firestoreQuery := client.Collection(ordersCollection).Query
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		firestoreQuery = firestoreQuery.Where("userRef", "==", userID)
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		firestoreQuery = firestoreQuery.Where("email", "==", strings.ToLower(email))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				statuses = append(statuses, trimmed)
			}
		}
		if len(statuses) > 0 {
			firestoreQuery = firestoreQuery.Where("status", "in", statuses)
		}
	}
	if filter.DateRange.From != nil {
		firestoreQuery = firestoreQuery.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		firestoreQuery = firestoreQuery.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}
	firestoreQuery = firestoreQuery.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, orderID, err := decodeOrderPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		firestoreQuery = firestoreQuery.StartAfter(createdAt, orderID)
	}

	iter := firestoreQuery.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeOrderPageToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus flips an order from one expected status to the next inside a
// transaction. Stock is never touched here; the inventory repository owns the
// transitions with stock effects.
func (r *OrderRepository) UpdateStatus(ctx context.Context, req repositories.UpdateOrderStatusRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("orders.updateStatus: order id is required")
	}

	now := req.Now.UTC()
	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		doc, err := readOrderDocument(tx, orderRef, orderID)
		if err != nil {
			return err
		}
		if doc.Status != string(req.From) {
			return repositories.NewInventoryError(
				repositories.InventoryErrorInvalidOrderState,
				fmt.Sprintf("order %s is %s, expected %s", orderID, doc.Status, req.From),
				nil,
			)
		}

		doc.Status = string(req.To)
		doc.UpdatedAt = now
		switch req.To {
		case domain.OrderStatusShipped:
			doc.ShippedAt = &now
		case domain.OrderStatusDelivered:
			doc.DeliveredAt = &now
		}
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.updateStatus", err)
	}
	return updated, nil
}

func readOrderDocument(tx *firestore.Transaction, ref *firestore.DocumentRef, orderID string) (orderDocument, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return orderDocument{}, repositories.NewInventoryError(repositories.InventoryErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return orderDocument{}, err
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return orderDocument{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return doc, nil
}

func encodeOrderPageToken(createdAt time.Time, orderID string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), orderID},
	})
}

func decodeOrderPageToken(encoded string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(encoded)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	rawCreatedAt, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", fmt.Errorf("%w: cursor timestamp must be a string", pagination.ErrInvalidPageToken)
	}
	orderID, ok := cursor.StartAfter[1].(string)
	if !ok {
		return time.Time{}, "", fmt.Errorf("%w: cursor order id must be a string", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawCreatedAt)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	return createdAt, orderID, nil
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	var discErr *repositories.DiscountError
	if errors.As(err, &discErr) {
		if discErr.Op == "" {
			discErr.Op = op
		}
		return discErr
	}
	return pfirestore.WrapError(op, err)
}
