package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/platform/storage"
	"github.com/nilecart/api/internal/repositories"
)

// ProofURLSigner issues short-lived signed upload URLs for transfer receipts.
type ProofURLSigner interface {
	SignedUploadURL(ctx context.Context, object, contentType string) (url string, expiresAt time.Time, err error)
}

var allowedProofContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders   repositories.OrderRepository
	Payments repositories.PaymentRepository
	Signer   ProofURLSigner
	Clock    func() time.Time
}

type paymentService struct {
	orders   repositories.OrderRepository
	payments repositories.PaymentRepository
	signer   ProofURLSigner
	clock    func() time.Time
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &paymentService{
		orders:   deps.Orders,
		payments: deps.Payments,
		signer:   deps.Signer,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID string, access OrderAccess) ([]domain.Payment, error) {
	if _, err := s.authorizedOrder(ctx, orderID, access); err != nil {
		return nil, err
	}
	payments, err := s.payments.List(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return payments, nil
}

// CreateProofUpload hands out a signed slot for the buyer's transfer receipt.
// Proofs only make sense for bank-transfer payments; cash on delivery settles
// at the door.
func (s *paymentService) CreateProofUpload(ctx context.Context, cmd ProofUploadCommand) (ProofUpload, error) {
	if s.signer == nil {
		return ProofUpload{}, errors.New("payment service: proof signer not configured")
	}
	payment, err := s.authorizedPayment(ctx, cmd.OrderID, cmd.PaymentID, cmd.Access)
	if err != nil {
		return ProofUpload{}, err
	}
	if payment.Method != domain.PaymentMethodInstapay {
		return ProofUpload{}, fmt.Errorf("%w: %s", ErrPaymentProofNotSupported, payment.Method)
	}
	if payment.Status == domain.PaymentStatusPaid {
		return ProofUpload{}, fmt.Errorf("%w: payment already settled", ErrPaymentInvalidState)
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if _, ok := allowedProofContentTypes[contentType]; !ok {
		return ProofUpload{}, fmt.Errorf("%w: content type %q not accepted for proofs", ErrPaymentInvalidState, cmd.ContentType)
	}

	object, err := proofObjectPath(payment.OrderID, payment.ID, contentType, s.clock())
	if err != nil {
		return ProofUpload{}, fmt.Errorf("payment: build proof path: %w", err)
	}
	url, expiresAt, err := s.signer.SignedUploadURL(ctx, object, contentType)
	if err != nil {
		return ProofUpload{}, fmt.Errorf("payment: sign proof upload: %w", err)
	}

	return ProofUpload{
		UploadURL: url,
		ProofRef:  object,
		ExpiresAt: expiresAt,
	}, nil
}

// AttachProof records the uploaded receipt and moves the payment into
// operator review.
func (s *paymentService) AttachProof(ctx context.Context, cmd AttachProofCommand) (domain.Payment, error) {
	payment, err := s.authorizedPayment(ctx, cmd.OrderID, cmd.PaymentID, cmd.Access)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Method != domain.PaymentMethodInstapay {
		return domain.Payment{}, fmt.Errorf("%w: %s", ErrPaymentProofNotSupported, payment.Method)
	}

	ref := strings.TrimSpace(cmd.ProofRef)
	if ref == "" {
		return domain.Payment{}, fmt.Errorf("%w: proof reference is required", ErrPaymentInvalidState)
	}

	updated, err := s.payments.AttachProof(ctx, repositories.AttachProofRequest{
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		ProofRef:  ref,
		Now:       s.clock(),
	})
	if err != nil {
		return domain.Payment{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

// Review settles or rejects a payment under operator review. Approval marks
// it paid; rejection returns it to unpaid so the buyer can retry.
func (s *paymentService) Review(ctx context.Context, cmd ReviewPaymentCommand) (domain.Payment, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if orderID == "" || paymentID == "" {
		return domain.Payment{}, fmt.Errorf("%w: order and payment ids are required", ErrOrderInvalidInput)
	}

	updated, err := s.payments.Review(ctx, repositories.ReviewPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Approve:   cmd.Approve,
		Reviewer:  strings.TrimSpace(cmd.ActorID),
		Now:       s.clock(),
	})
	if err != nil {
		return domain.Payment{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *paymentService) authorizedOrder(ctx context.Context, orderID string, access OrderAccess) (domain.Order, error) {
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

func (s *paymentService) authorizedPayment(ctx context.Context, orderID, paymentID string, access OrderAccess) (domain.Payment, error) {
	order, err := s.authorizedOrder(ctx, orderID, access)
	if err != nil {
		return domain.Payment{}, err
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment id is required", ErrOrderInvalidInput)
	}
	payment, err := s.payments.FindByID(ctx, order.ID, paymentID)
	if err != nil {
		return domain.Payment{}, s.mapRepositoryError(err)
	}
	return payment, nil
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorOrderNotFound:
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repositories.InventoryErrorInvalidOrderState:
			return fmt.Errorf("%w: %v", ErrPaymentInvalidState, err)
		}
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPaymentInvalidState, err)
		}
	}
	return err
}

func proofObjectPath(orderID, paymentID, contentType string, now time.Time) (string, error) {
	ext := "bin"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	case "application/pdf":
		ext = "pdf"
	}
	return storage.BuildObjectPath(storage.PurposeProof, storage.PathParams{
		OrderID:   orderID,
		PaymentID: paymentID,
		FileName:  fmt.Sprintf("%d.%s", now.UnixNano(), ext),
	})
}
