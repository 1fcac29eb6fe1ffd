package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/nilecart/api/internal/domain"
	pfirestore "github.com/nilecart/api/internal/platform/firestore"
	"github.com/nilecart/api/internal/repositories"
)

// InventoryRepository executes the order/stock consistency transactions.
// Every mutation reads the order and all line products inside one Firestore
// transaction, so a shortfall on any line rolls back the whole operation and
// the order status only ever changes together with its stock effects.
type InventoryRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
}

func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	products := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &InventoryRepository{provider: provider, orders: orders, products: products}, nil
}

// ConfirmOrder decrements stock for every order line and flips the order from
// pending to confirmed atomically.
func (r *InventoryRepository) ConfirmOrder(ctx context.Context, req repositories.ConfirmOrderRequest) (repositories.ConfirmOrderResult, error) {
	if r == nil || r.provider == nil {
		return repositories.ConfirmOrderResult{}, errors.New("inventory repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return repositories.ConfirmOrderResult{}, errors.New("inventory confirm: order id is required")
	}

	now := req.Now.UTC()
	var result repositories.ConfirmOrderResult

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		orderDoc, err := readOrderDocument(tx, orderRef, orderID)
		if err != nil {
			return err
		}
		if orderDoc.Status != string(domain.OrderStatusPending) {
			return repositories.NewInventoryError(
				repositories.InventoryErrorInvalidOrderState,
				fmt.Sprintf("order %s is %s, only pending orders can be confirmed", orderID, orderDoc.Status),
				nil,
			)
		}

		productDocs, productRefs, err := r.readLineProducts(ctx, tx, orderDoc.Lines)
		if err != nil {
			return err
		}

		stocks := make(map[string]domain.StockLevel, len(productDocs))
		for _, line := range orderDoc.Lines {
			doc := productDocs[line.ProductRef]
			if err := decrementLine(doc, line); err != nil {
				return err
			}
		}
		for id, doc := range productDocs {
			doc.UpdatedAt = now
			doc.recalculate()
			if err := tx.Set(productRefs[id], *doc); err != nil {
				return err
			}
			stocks[id] = domain.StockLevel{
				ProductID: id,
				Name:      doc.Name.EN,
				Available: doc.Available,
				UpdatedAt: now,
			}
		}

		orderDoc.Status = string(domain.OrderStatusConfirmed)
		orderDoc.ConfirmedAt = &now
		orderDoc.UpdatedAt = now
		if err := tx.Set(orderRef, orderDoc); err != nil {
			return err
		}

		result = repositories.ConfirmOrderResult{
			Order:  orderDoc.toDomain(orderID),
			Stocks: stocks,
		}
		return nil
	})
	if err != nil {
		return repositories.ConfirmOrderResult{}, wrapOrderError("inventory.confirm", err)
	}
	return result, nil
}

// CancelOrder flips the order to cancelled. Confirmed orders get every line's
// stock restored in the same transaction; pending orders never held stock, so
// only the status changes.
func (r *InventoryRepository) CancelOrder(ctx context.Context, req repositories.CancelOrderRequest) (repositories.CancelOrderResult, error) {
	if r == nil || r.provider == nil {
		return repositories.CancelOrderResult{}, errors.New("inventory repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return repositories.CancelOrderResult{}, errors.New("inventory cancel: order id is required")
	}

	now := req.Now.UTC()
	var result repositories.CancelOrderResult

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		orderDoc, err := readOrderDocument(tx, orderRef, orderID)
		if err != nil {
			return err
		}

		restore := false
		switch orderDoc.Status {
		case string(domain.OrderStatusPending):
		case string(domain.OrderStatusConfirmed):
			restore = true
		default:
			return repositories.NewInventoryError(
				repositories.InventoryErrorInvalidOrderState,
				fmt.Sprintf("order %s is %s and can no longer be cancelled", orderID, orderDoc.Status),
				nil,
			)
		}

		stocks := make(map[string]domain.StockLevel)
		if restore {
			productDocs, productRefs, err := r.readLineProducts(ctx, tx, orderDoc.Lines)
			if err != nil {
				return err
			}
			for _, line := range orderDoc.Lines {
				restoreLine(productDocs[line.ProductRef], line)
			}
			for id, doc := range productDocs {
				doc.UpdatedAt = now
				doc.recalculate()
				if err := tx.Set(productRefs[id], *doc); err != nil {
					return err
				}
				stocks[id] = domain.StockLevel{
					ProductID: id,
					Name:      doc.Name.EN,
					Available: doc.Available,
					UpdatedAt: now,
				}
			}
		}

		orderDoc.Status = string(domain.OrderStatusCancelled)
		orderDoc.CancelledAt = &now
		orderDoc.UpdatedAt = now
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			orderDoc.CancelReason = reason
		}
		if err := tx.Set(orderRef, orderDoc); err != nil {
			return err
		}

		result = repositories.CancelOrderResult{
			Order:    orderDoc.toDomain(orderID),
			Restored: restore,
			Stocks:   stocks,
		}
		return nil
	})
	if err != nil {
		return repositories.CancelOrderResult{}, wrapOrderError("inventory.cancel", err)
	}
	return result, nil
}

// readLineProducts fetches each distinct line product once within the
// transaction so multiple lines of the same product mutate a single document.
func (r *InventoryRepository) readLineProducts(ctx context.Context, tx *firestore.Transaction, lines []orderLineDocument) (map[string]*productDocument, map[string]*firestore.DocumentRef, error) {
	docs := make(map[string]*productDocument, len(lines))
	refs := make(map[string]*firestore.DocumentRef, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductRef)
		if productID == "" {
			return nil, nil, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "order line missing product reference", nil)
		}
		if _, ok := docs[productID]; ok {
			continue
		}
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return nil, nil, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil, &repositories.InventoryError{
					Code:      repositories.InventoryErrorProductNotFound,
					Message:   fmt.Sprintf("product %s not found", productID),
					ProductID: productID,
					Product:   line.Name,
					Err:       err,
				}
			}
			return nil, nil, err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, fmt.Errorf("decode product %s: %w", productID, err)
		}
		docs[productID] = &doc
		refs[productID] = ref
	}
	return docs, refs, nil
}

// decrementLine takes the line quantity out of the matching stock pool. The
// variant pool is used when the line names a colour/size, otherwise the flat
// counter.
func decrementLine(doc *productDocument, line orderLineDocument) error {
	if line.Quantity <= 0 {
		return repositories.NewInventoryError(repositories.InventoryErrorUnknown, fmt.Sprintf("quantity for %s must be > 0", line.ProductRef), nil)
	}

	if line.hasVariant() {
		for i := range doc.Variants {
			v := &doc.Variants[i]
			if v.Color != line.Color || v.Size != line.Size {
				continue
			}
			available := v.Stock
			if v.OutOfStock {
				available = 0
			}
			if available < line.Quantity {
				return insufficientStock(line, available)
			}
			v.Stock -= line.Quantity
			if v.Stock == 0 {
				v.OutOfStock = true
			}
			return nil
		}
		return &repositories.InventoryError{
			Code:      repositories.InventoryErrorVariantNotFound,
			Message:   fmt.Sprintf("variant %s/%s of product %s not found", line.Color, line.Size, line.ProductRef),
			ProductID: line.ProductRef,
			Product:   line.Name,
		}
	}

	if doc.Stock < line.Quantity {
		return insufficientStock(line, doc.Stock)
	}
	doc.Stock -= line.Quantity
	return nil
}

// restoreLine is the exact inverse of decrementLine. A restored variant pool
// drops its out-of-stock flag since it is sellable again.
func restoreLine(doc *productDocument, line orderLineDocument) {
	if line.hasVariant() {
		for i := range doc.Variants {
			v := &doc.Variants[i]
			if v.Color != line.Color || v.Size != line.Size {
				continue
			}
			v.Stock += line.Quantity
			v.OutOfStock = false
			return
		}
		// Variant removed since confirmation: restore into a recreated pool so
		// the units are not lost.
		doc.Variants = append(doc.Variants, productVariantDocument{
			Color: line.Color,
			Size:  line.Size,
			Stock: line.Quantity,
		})
		return
	}
	doc.Stock += line.Quantity
}

func insufficientStock(line orderLineDocument, available int) *repositories.InventoryError {
	return &repositories.InventoryError{
		Code:      repositories.InventoryErrorInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s: requested %d, available %d", line.ProductRef, line.Quantity, available),
		ProductID: line.ProductRef,
		Product:   line.Name,
		Requested: line.Quantity,
		Available: available,
	}
}
