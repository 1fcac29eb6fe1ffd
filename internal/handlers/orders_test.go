package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/platform/auth"
	"github.com/nilecart/api/internal/services"
)

func newOrderRouter(orders services.OrderService, payments services.PaymentService) chi.Router {
	r := chi.NewRouter()
	handlers := NewOrderHandlers(nil, orders, payments)
	r.Route("/orders", handlers.Routes)
	return r
}

func handlerOrderFixture() domain.Order {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:     "ord_1",
		Number: "NC-2025-000001",
		Status: domain.OrderStatusPending,
		Customer: domain.Customer{
			UserID: "user-1",
			Email:  "buyer@example.com",
		},
		Lines: []domain.OrderLine{
			{ProductID: "prod_1", Name: "Linen Shirt", Quantity: 1, UnitPrice: 500, Total: 500},
		},
		Totals:    domain.OrderTotals{Subtotal: 500, Fee: 50, Total: 550},
		Address:   domain.Address{Kind: domain.AddressKindFreeform, Freeform: "12 Nile St"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderHandlersGetOrderAuthenticated(t *testing.T) {
	var gotAccess services.OrderAccess
	orders := &stubOrderService{
		getFunc: func(_ context.Context, orderID string, access services.OrderAccess) (domain.Order, error) {
			if orderID != "ord_1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			gotAccess = access
			return handlerOrderFixture(), nil
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1", nil)
	identity := &auth.Identity{UID: "user-1", Email: "buyer@example.com"}
	req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotAccess.UserID != "user-1" || gotAccess.Email != "buyer@example.com" {
		t.Fatalf("expected identity access, got %+v", gotAccess)
	}

	var resp struct {
		Order struct {
			ID          string `json:"id"`
			OrderNumber string `json:"order_number"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != "ord_1" || resp.Order.OrderNumber != "NC-2025-000001" {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
}

func TestOrderHandlersGetOrderGuestEmailQuery(t *testing.T) {
	var gotAccess services.OrderAccess
	orders := &stubOrderService{
		getFunc: func(_ context.Context, _ string, access services.OrderAccess) (domain.Order, error) {
			gotAccess = access
			return handlerOrderFixture(), nil
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1?email=buyer@example.com", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotAccess.UserID != "" || gotAccess.Email != "buyer@example.com" {
		t.Fatalf("expected guest email access, got %+v", gotAccess)
	}
}

func TestOrderHandlersGetOrderHidesDenials(t *testing.T) {
	orders := &stubOrderService{
		getFunc: func(context.Context, string, services.OrderAccess) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderAccessDenied
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1?email=other@example.com", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["error"] != "order_not_found" {
		t.Fatalf("expected order_not_found for denied access, got %v", payload["error"])
	}
}

func TestOrderHandlersListOrdersRequiresCaller(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersFilters(t *testing.T) {
	var gotQuery services.ListOrdersQuery
	orders := &stubOrderService{
		listFunc: func(_ context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
			gotQuery = query
			return domain.CursorPage[domain.Order]{
				Items:         []domain.Order{handlerOrderFixture()},
				NextPageToken: "next",
			}, nil
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=PENDING,confirmed&page_size=5&page_token=tok&created_after=2025-01-01T00:00:00Z", nil)
	identity := &auth.Identity{UID: "user-1", Email: "buyer@example.com"}
	req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(gotQuery.Status) != 2 || gotQuery.Status[0] != domain.OrderStatusPending || gotQuery.Status[1] != domain.OrderStatusConfirmed {
		t.Fatalf("expected lowercased status filters, got %v", gotQuery.Status)
	}
	if gotQuery.Pagination.PageSize != 5 || gotQuery.Pagination.PageToken != "tok" {
		t.Fatalf("unexpected pagination: %+v", gotQuery.Pagination)
	}
	if gotQuery.DateRange.From == nil || !gotQuery.DateRange.From.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected created_after filter, got %+v", gotQuery.DateRange)
	}

	var resp struct {
		Items         []map[string]any `json:"items"`
		NextPageToken string           `json:"next_page_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextPageToken != "next" {
		t.Fatalf("unexpected list payload: %+v", resp)
	}
}

func TestOrderHandlersListOrdersRejectsBadPageSize(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?page_size=lots", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersStorageOutageAnswers503(t *testing.T) {
	orders := &stubOrderService{
		listFunc: func(context.Context, services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{}, services.ErrServiceUnavailable
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?email=buyer@example.com", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["error"] != "service_unavailable" {
		t.Fatalf("expected service_unavailable, got %v", payload["error"])
	}
}

func TestOrderHandlersListOrdersRejectsBadTimestamp(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?created_after=yesterday", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	var gotCmd services.CancelOrderCommand
	orders := &stubOrderService{
		cancelFunc: func(_ context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			gotCmd = cmd
			order := handlerOrderFixture()
			order.Status = domain.OrderStatusCancelled
			order.CancelReason = cmd.Reason
			return order, nil
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	body := `{"reason": "changed my mind", "email": "buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:cancel", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.OrderID != "ord_1" || gotCmd.Reason != "changed my mind" {
		t.Fatalf("unexpected cancel command: %+v", gotCmd)
	}
	if gotCmd.Access.Email != "buyer@example.com" {
		t.Fatalf("expected guest email from body, got %+v", gotCmd.Access)
	}

	var resp struct {
		Order struct {
			Status       string `json:"status"`
			CancelReason string `json:"cancel_reason"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Status != "cancelled" || resp.Order.CancelReason != "changed my mind" {
		t.Fatalf("unexpected cancel payload: %+v", resp.Order)
	}
}

func TestOrderHandlersCancelConfirmedRejected(t *testing.T) {
	orders := &stubOrderService{
		cancelFunc: func(context.Context, services.CancelOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidState
		},
	}
	router := newOrderRouter(orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:cancel", strings.NewReader(`{"email":"buyer@example.com"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["error"] != "order_invalid_state" {
		t.Fatalf("expected order_invalid_state, got %v", payload["error"])
	}
}

func TestOrderHandlersListPayments(t *testing.T) {
	payments := &stubPaymentService{
		listFunc: func(_ context.Context, orderID string, _ services.OrderAccess) ([]domain.Payment, error) {
			if orderID != "ord_1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			return []domain.Payment{
				{ID: "pay_1", OrderID: "ord_1", Method: domain.PaymentMethodInstapay, Status: domain.PaymentStatusUnpaid, Amount: 550},
			}, nil
		},
	}
	router := newOrderRouter(&stubOrderService{}, payments)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1/payments?email=buyer@example.com", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Items []struct {
			ID     string `json:"id"`
			Method string `json:"method"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "pay_1" || resp.Items[0].Method != "instapay" {
		t.Fatalf("unexpected payments payload: %+v", resp.Items)
	}
}

func TestOrderHandlersCreateProofUpload(t *testing.T) {
	expires := time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC)
	var gotCmd services.ProofUploadCommand
	payments := &stubPaymentService{
		uploadFunc: func(_ context.Context, cmd services.ProofUploadCommand) (services.ProofUpload, error) {
			gotCmd = cmd
			return services.ProofUpload{
				UploadURL: "https://storage.example.com/signed",
				ProofRef:  "proofs/ord_1/pay_1/1740830400000000000.png",
				ExpiresAt: expires,
			}, nil
		},
	}
	router := newOrderRouter(&stubOrderService{}, payments)

	body := `{"payment_id": "pay_1", "content_type": "image/png", "email": "buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/payment-proof", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.OrderID != "ord_1" || gotCmd.PaymentID != "pay_1" || gotCmd.ContentType != "image/png" {
		t.Fatalf("unexpected upload command: %+v", gotCmd)
	}

	var resp proofUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.UploadURL != "https://storage.example.com/signed" {
		t.Fatalf("unexpected upload url %q", resp.UploadURL)
	}
	if !strings.HasPrefix(resp.ProofRef, "proofs/ord_1/pay_1/") {
		t.Fatalf("unexpected proof ref %q", resp.ProofRef)
	}
	if resp.ExpiresAt != "2025-03-01T12:15:00Z" {
		t.Fatalf("unexpected expiry %q", resp.ExpiresAt)
	}
}

func TestOrderHandlersCreateProofUploadNotSupported(t *testing.T) {
	payments := &stubPaymentService{
		uploadFunc: func(context.Context, services.ProofUploadCommand) (services.ProofUpload, error) {
			return services.ProofUpload{}, services.ErrPaymentProofNotSupported
		},
	}
	router := newOrderRouter(&stubOrderService{}, payments)

	body := `{"payment_id": "pay_1", "content_type": "image/png", "email": "buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/payment-proof", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["error"] != "proof_not_supported" {
		t.Fatalf("expected proof_not_supported, got %v", payload["error"])
	}
}

func TestOrderHandlersAttachProof(t *testing.T) {
	var gotCmd services.AttachProofCommand
	payments := &stubPaymentService{
		attachFunc: func(_ context.Context, cmd services.AttachProofCommand) (domain.Payment, error) {
			gotCmd = cmd
			return domain.Payment{
				ID:       cmd.PaymentID,
				OrderID:  cmd.OrderID,
				Method:   domain.PaymentMethodInstapay,
				Status:   domain.PaymentStatusPendingApproval,
				ProofRef: cmd.ProofRef,
			}, nil
		},
	}
	router := newOrderRouter(&stubOrderService{}, payments)

	body := `{"payment_id": "pay_1", "proof_ref": "proofs/ord_1/pay_1/x.png", "email": "buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/payment-proof:attach", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.ProofRef != "proofs/ord_1/pay_1/x.png" {
		t.Fatalf("unexpected attach command: %+v", gotCmd)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "pending_approval" {
		t.Fatalf("expected pending_approval, got %q", resp.Status)
	}
}
