package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/nilecart/api/internal/domain"
	pfirestore "github.com/nilecart/api/internal/platform/firestore"
	"github.com/nilecart/api/internal/repositories"
)

// PaymentRepository stores payment records in a subcollection underneath the
// owning order document.
type PaymentRepository struct {
	provider *pfirestore.Provider
}

func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{provider: provider}, nil
}

func (r *PaymentRepository) List(ctx context.Context, orderID string) ([]domain.Payment, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("payment repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("payments.list: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("payments.list", err)
	}

	iter := client.Collection(ordersCollection).Doc(orderID).
		Collection(paymentsSubcollection).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var payments []domain.Payment
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("payments.list", err)
		}
		var doc paymentDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode payment %s: %w", snap.Ref.ID, err)
		}
		payments = append(payments, doc.toDomain(snap.Ref.ID))
	}
	return payments, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, orderID string, paymentID string) (domain.Payment, error) {
	if r == nil || r.provider == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return domain.Payment{}, errors.New("payments.findById: order and payment ids are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Payment{}, pfirestore.WrapError("payments.findById", err)
	}

	snap, err := client.Collection(ordersCollection).Doc(orderID).
		Collection(paymentsSubcollection).Doc(paymentID).Get(ctx)
	if err != nil {
		return domain.Payment{}, pfirestore.WrapError("payments.findById", err)
	}
	var doc paymentDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Payment{}, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}
	return doc.toDomain(paymentID), nil
}

// AttachProof records the uploaded receipt reference and moves the payment to
// pending approval. Only unpaid or re-submitted pending payments accept a new
// proof.
func (r *PaymentRepository) AttachProof(ctx context.Context, req repositories.AttachProofRequest) (domain.Payment, error) {
	return r.mutate(ctx, "payments.attachProof", req.OrderID, req.PaymentID, func(doc *paymentDocument) error {
		if doc.Status == string(domain.PaymentStatusPaid) {
			return repositories.NewInventoryError(
				repositories.InventoryErrorInvalidOrderState,
				fmt.Sprintf("payment %s is already settled", req.PaymentID),
				nil,
			)
		}
		proof := strings.TrimSpace(req.ProofRef)
		if proof == "" {
			return errors.New("payments.attachProof: proof ref is required")
		}
		now := req.Now.UTC()
		doc.ProofRef = proof
		doc.Status = string(domain.PaymentStatusPendingApproval)
		doc.ReviewedBy = ""
		doc.ReviewedAt = nil
		doc.UpdatedAt = now
		return nil
	})
}

// Review settles an approved proof or returns a rejected payment to unpaid.
func (r *PaymentRepository) Review(ctx context.Context, req repositories.ReviewPaymentRequest) (domain.Payment, error) {
	return r.mutate(ctx, "payments.review", req.OrderID, req.PaymentID, func(doc *paymentDocument) error {
		if doc.Status != string(domain.PaymentStatusPendingApproval) {
			return repositories.NewInventoryError(
				repositories.InventoryErrorInvalidOrderState,
				fmt.Sprintf("payment %s is not awaiting review", req.PaymentID),
				nil,
			)
		}
		now := req.Now.UTC()
		if req.Approve {
			doc.Status = string(domain.PaymentStatusPaid)
		} else {
			doc.Status = string(domain.PaymentStatusUnpaid)
		}
		doc.ReviewedBy = strings.TrimSpace(req.Reviewer)
		doc.ReviewedAt = &now
		doc.UpdatedAt = now
		return nil
	})
}

func (r *PaymentRepository) mutate(ctx context.Context, op string, orderID string, paymentID string, apply func(*paymentDocument) error) (domain.Payment, error) {
	if r == nil || r.provider == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return domain.Payment{}, fmt.Errorf("%s: order and payment ids are required", op)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Payment{}, pfirestore.WrapError(op, err)
	}
	ref := client.Collection(ordersCollection).Doc(orderID).
		Collection(paymentsSubcollection).Doc(paymentID)

	var updated domain.Payment
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorOrderNotFound, fmt.Sprintf("payment %s not found", paymentID), err)
			}
			return err
		}
		var doc paymentDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode payment %s: %w", paymentID, err)
		}
		if err := apply(&doc); err != nil {
			return err
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(paymentID)
		return nil
	})
	if err != nil {
		return domain.Payment{}, wrapOrderError(op, err)
	}
	return updated, nil
}
