package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/nilecart/api/internal/domain"
	pfirestore "github.com/nilecart/api/internal/platform/firestore"
	"github.com/nilecart/api/internal/platform/pagination"
	"github.com/nilecart/api/internal/repositories"
)

// ProductRepository reads catalog snapshots for quoting and availability checks.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	products := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, products: products}, nil
}

// FindActiveByIDs fetches the requested products in one batch read. Missing,
// inactive, or soft-deleted products are omitted from the result.
func (r *ProductRepository) FindActiveByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}

	seen := make(map[string]struct{}, len(productIDs))
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("products.findActiveByIds", err)
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = client.Collection(productsCollection).Doc(id)
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.findActiveByIds", err)
	}

	result := make(map[string]domain.Product, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		if !doc.sellable() {
			continue
		}
		result[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
	}
	return result, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("products.findById: product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListLowStock pages products whose denormalised availability sits at or below
// the threshold, lowest first.
func (r *ProductRepository) ListLowStock(ctx context.Context, query repositories.LowStockQuery) (domain.CursorPage[domain.StockLevel], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.StockLevel]{}, errors.New("product repository not initialised")
	}

	threshold := query.Threshold
	if threshold < 0 {
		threshold = 0
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.StockLevel]{}, pfirestore.WrapError("products.lowStock", err)
	}

	firestoreQuery := client.Collection(productsCollection).Query.
		Where("active", "==", true).
		Where("available", "<=", threshold).
		OrderBy("available", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(query.PageToken); token != "" {
		available, productID, err := decodeLowStockPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.StockLevel]{}, pfirestore.WrapError("products.lowStock", err)
		}
		firestoreQuery = firestoreQuery.StartAfter(available, productID)
	}

	iter := firestoreQuery.Documents(ctx)
	defer iter.Stop()

	var levels []domain.StockLevel
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.StockLevel]{}, pfirestore.WrapError("products.lowStock", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.StockLevel]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		if doc.DeletedAt != nil {
			continue
		}
		levels = append(levels, domain.StockLevel{
			ProductID: snap.Ref.ID,
			Name:      doc.Name.EN,
			Available: doc.Available,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	hasMore := len(levels) > pageSize
	if hasMore {
		levels = levels[:pageSize]
	}
	var nextToken string
	if hasMore && len(levels) > 0 {
		last := levels[len(levels)-1]
		encoded, err := encodeLowStockPageToken(last.Available, last.ProductID)
		if err != nil {
			return domain.CursorPage[domain.StockLevel]{}, pfirestore.WrapError("products.lowStock", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.StockLevel]{
		Items:         levels,
		NextPageToken: nextToken,
	}, nil
}

func encodeLowStockPageToken(available int, productID string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{available, productID},
	})
}

func decodeLowStockPageToken(encoded string) (int, string, error) {
	cursor, err := pagination.DecodeToken(encoded)
	if err != nil {
		return 0, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return 0, "", fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	// JSON round trips numbers as float64.
	rawAvailable, ok := cursor.StartAfter[0].(float64)
	if !ok {
		return 0, "", fmt.Errorf("%w: cursor stock level must be numeric", pagination.ErrInvalidPageToken)
	}
	productID, ok := cursor.StartAfter[1].(string)
	if !ok {
		return 0, "", fmt.Errorf("%w: cursor product id must be a string", pagination.ErrInvalidPageToken)
	}
	return int(rawAvailable), productID, nil
}
